// Package biz 提供问答服务的业务逻辑层。
//
// 组件自底向上：
//   - CorpusLoader: 读取知识库目录，缓存文档
//   - Embedder: 延迟构建向量模型，校验并归一化输出
//   - CosineSimilarity / BestMatch: 相似度打分
//   - Index: 文档与向量按位置对齐的索引，首次使用时构建
//   - Gate: 按阈值判断问题是否与知识库相关
//   - HistoryStore: 按会话保存对话历史
//   - Service: 组合以上组件回答问题
package biz
