// Package watcher rebuilds the knowledge index when the knowledge directory changes.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
)

// ReloadFunc 目录变化后调用。
type ReloadFunc func(ctx context.Context) error

// CorpusWatcher 监听知识库目录，在 debounce 窗口内合并多次变化后触发一次重建。
type CorpusWatcher struct {
	dir      string
	debounce time.Duration
	reload   ReloadFunc

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	reloads int
	// inflight 正在执行的重建，Stop 等待其结束
	inflight sync.WaitGroup
}

// New creates a CorpusWatcher.
func New(dir string, debounce time.Duration, reload ReloadFunc) *CorpusWatcher {
	return &CorpusWatcher{dir: dir, debounce: debounce, reload: reload}
}

// Name returns the component name.
func (w *CorpusWatcher) Name() string {
	return "corpus-watcher"
}

// Start begins watching. It does not block.
func (w *CorpusWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to watch knowledge directory %s: %w", w.dir, err)
	}

	w.watcher = fw
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))
	w.done = make(chan struct{})
	go w.loop(fw, w.done)

	logger.Infow("Knowledge directory watcher started", "dir", w.dir, "debounce", w.debounce.String())
	return nil
}

func (w *CorpusWatcher) loop(fw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debugw("Knowledge file changed", "file", event.Name, "op", event.Op.String())
			w.schedule()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warnw("Knowledge directory watcher error", "error", err.Error())
		}
	}
}

// schedule 重置合并窗口。
func (w *CorpusWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *CorpusWatcher) fire() {
	w.mu.Lock()
	ctx := w.ctx
	if ctx == nil || ctx.Err() != nil {
		w.mu.Unlock()
		return
	}
	w.reloads++
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()

	if err := w.reload(ctx); err != nil {
		logger.Errorw("Failed to rebuild knowledge index", "dir", w.dir, "error", err.Error())
		return
	}
	logger.Infow("Knowledge index rebuilt after directory change", "dir", w.dir)
}

// Reloads 返回已触发的重建次数。
func (w *CorpusWatcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Stop stops watching and waits for the event loop and any running reload to exit.
func (w *CorpusWatcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	fw, cancel, done := w.watcher, w.cancel, w.done
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.watcher, w.cancel, w.done = nil, nil, nil
	// 持锁取消，之后 fire 不会再登记新的重建
	if cancel != nil {
		cancel()
	}
	w.mu.Unlock()

	if fw == nil {
		return nil
	}
	err := fw.Close()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	idle := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}
	logger.Info("Knowledge directory watcher stopped")
	return err
}
