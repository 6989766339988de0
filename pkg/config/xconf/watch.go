package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchCallback 在每次重载尝试后调用，err 非 nil 表示重载失败（旧配置仍然生效）。
type WatchCallback func(cfg *Config, err error)

// WatchOption 监视器配置选项
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
}

// WithDebounce 设置防抖时间，默认 100ms，非正数忽略。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// Watch 监视配置文件变更并自动重载，直到 ctx 取消或调用 stop。
// stop 幂等，返回前等待监视 goroutine 与挂起的回调结束。
//
// 监视的是文件所在目录：编辑器保存时常先删除再创建，直接监视文件会丢失事件。
func (c *Config) Watch(ctx context.Context, callback WatchCallback, opts ...WatchOption) (stop func() error, err error) {
	if c.path == "" {
		return nil, ErrNotReloadable
	}
	o := &watchOptions{debounce: 100 * time.Millisecond}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: failed to create watcher: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := fw.Add(dir); err != nil {
		return nil, errors.Join(fmt.Errorf("xconf: failed to watch directory %s: %w", dir, err), fw.Close())
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &watcher{cfg: c, fw: fw, callback: callback, debounce: o.debounce}
	w.wg.Add(1)
	go w.run(ctx)

	var once sync.Once
	var closeErr error
	stop = func() error {
		once.Do(func() {
			cancel()
			w.wg.Wait()
			closeErr = fw.Close()
		})
		return closeErr
	}
	return stop, nil
}

type watcher struct {
	cfg      *Config
	fw       *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration
	wg       sync.WaitGroup
}

func (w *watcher) run(ctx context.Context) {
	defer w.wg.Done()

	filename := filepath.Base(w.cfg.path)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			// Rename 对应编辑器的原子写入（写临时文件后 rename）。
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			err := w.cfg.Reload()
			if w.callback != nil {
				w.callback(w.cfg, err)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			if w.callback != nil {
				w.callback(w.cfg, fmt.Errorf("xconf: watch error: %w", err))
			}
		}
	}
}
