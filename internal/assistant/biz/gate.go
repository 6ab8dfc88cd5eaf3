package biz

// DefaultRelevanceThreshold 短问题的向量对齐较弱，阈值取得较低。
const DefaultRelevanceThreshold = 0.35

// Gate 根据最佳匹配得分判断问题是否与知识库相关。
type Gate struct {
	threshold float64
}

// NewGate 创建 Gate。
func NewGate(threshold float64) Gate {
	return Gate{threshold: threshold}
}

// IsRelevant 报告 score 是否达到阈值。
func (g Gate) IsRelevant(score float64) bool {
	return score >= g.threshold
}

// Threshold 返回阈值。
func (g Gate) Threshold() float64 {
	return g.threshold
}
