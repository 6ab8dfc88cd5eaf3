package biz

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-assistant/internal/assistant/errno"
)

// CorpusLoader 读取知识库目录下的全部文档。
// 首次成功加载后结果被缓存，之后不再访问文件系统。
type CorpusLoader struct {
	fsys fs.FS
	root string
	dir  string

	mu     sync.Mutex
	docs   []Document
	loaded bool
}

// NewCorpusLoader 创建读取本地目录 dir 的加载器。
func NewCorpusLoader(dir string) *CorpusLoader {
	return &CorpusLoader{fsys: os.DirFS(dir), root: ".", dir: dir}
}

// NewCorpusLoaderFS 创建读取 fsys 中 root 目录的加载器。
func NewCorpusLoaderFS(fsys fs.FS, root string) *CorpusLoader {
	return &CorpusLoader{fsys: fsys, root: root, dir: root}
}

// Dir 返回知识库目录。
func (l *CorpusLoader) Dir() string {
	return l.dir
}

// Load 返回文档列表，顺序与目录列表一致。
// 目录不存在时返回 ErrConfiguration，失败结果不缓存。
func (l *CorpusLoader) Load(ctx context.Context) ([]Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.docs, nil
	}

	docs, err := l.read(ctx)
	if err != nil {
		return nil, err
	}

	l.docs = docs
	l.loaded = true
	logger.Infow("Knowledge corpus loaded", "dir", l.dir, "documents", len(docs))
	return docs, nil
}

func (l *CorpusLoader) read(ctx context.Context) ([]Document, error) {
	entries, err := fs.ReadDir(l.fsys, l.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errno.ErrConfiguration.
				WithMessagef("Knowledge folder does not exist: %s", l.dir).
				WithCause(err)
		}
		return nil, errno.ErrConfiguration.WithCause(err)
	}

	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := path.Join(l.root, entry.Name())
		// 符号链接按目标判断
		info, err := fs.Stat(l.fsys, name)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		data, err := fs.ReadFile(l.fsys, name)
		if err != nil {
			return nil, errno.ErrConfiguration.
				WithMessagef("Failed to read knowledge file: %s", entry.Name()).
				WithCause(err)
		}

		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		docs = append(docs, Document{Position: len(docs), Name: entry.Name(), Text: text})
	}
	return docs, nil
}

// Invalidate 丢弃缓存，下次 Load 重新读取目录。
func (l *CorpusLoader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.docs = nil
	l.loaded = false
}
