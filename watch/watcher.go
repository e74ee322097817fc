// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ===== 👀 配置文件监听 =====

// Event 表示一次被监听文件的状态变化。
type Event struct {
	// Path 是发生变化的文件的绝对路径
	Path string `json:"path"`

	// Op 是变化类型
	Op Op `json:"op"`

	// Timestamp 是事件被检测到的时间
	Timestamp time.Time `json:"timestamp"`
}

// Op represents the kind of file change.
type Op int

const (
	// OpCreate 表示文件新出现
	OpCreate Op = iota
	// OpModify 表示文件内容被修改
	OpModify
	// OpRemove 表示文件被删除
	OpRemove
)

// String returns the string representation of Op.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// fileState 是轮询比对用的文件快照
type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher 以轮询方式监听一组配置文件，变化经防抖后派发给回调。
type Watcher struct {
	mu sync.RWMutex

	// 配置
	paths         []string
	pollInterval  time.Duration
	debounceDelay time.Duration

	// 状态
	running   bool
	stopChan  chan struct{}
	eventChan chan Event

	// 回调
	callbacks []func(Event)

	logger *zap.Logger

	// 上次轮询看到的文件状态
	lastStates map[string]fileState
}

// Option configures the Watcher.
type Option func(*Watcher)

// WithPollInterval sets how often watched files are polled.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithDebounceDelay sets the debounce delay for change events.
func WithDebounceDelay(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a watcher over the given file paths.
// Paths are resolved to absolute form; missing files are watched for creation.
func NewWatcher(paths []string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		pollInterval:  1 * time.Second,
		debounceDelay: 200 * time.Millisecond,
		stopChan:      make(chan struct{}),
		eventChan:     make(chan Event, 100),
		callbacks:     make([]func(Event), 0),
		lastStates:    make(map[string]fileState),
		logger:        zap.NewNop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve path %s: %w", path, err)
		}
		if _, err := os.Stat(abs); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("stat path %s: %w", abs, err)
			}
			w.logger.Warn("watched file does not exist yet, waiting for creation",
				zap.String("path", abs))
		}
		w.paths = append(w.paths, abs)
	}

	return w, nil
}

// OnChange registers a callback invoked for every debounced change event.
func (w *Watcher) OnChange(callback func(Event)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins polling. It returns immediately; polling runs until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	// 记录初始状态，启动时已存在的文件不产生 CREATE 事件
	for _, path := range w.paths {
		if info, err := os.Stat(path); err == nil {
			w.lastStates[path] = fileState{modTime: info.ModTime(), size: info.Size()}
		}
	}
	w.mu.Unlock()

	go w.pollLoop(ctx)
	go w.dispatchLoop(ctx)

	w.logger.Info("file watcher started",
		zap.Strings("paths", w.paths),
		zap.Duration("poll_interval", w.pollInterval),
		zap.Duration("debounce_delay", w.debounceDelay))

	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	close(w.stopChan)
	w.running = false

	w.logger.Info("file watcher stopped")
	return nil
}

// Paths returns the list of watched absolute paths.
func (w *Watcher) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	paths := make([]string, len(w.paths))
	copy(paths, w.paths)
	return paths
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.checkFiles()
		}
	}
}

// checkFiles 对比每个文件的 mtime 和大小。mtime 精度在部分文件系统上
// 只有秒级，同一秒内的快速连续写入靠大小变化兜底。
func (w *Watcher) checkFiles() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range w.paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				if _, existed := w.lastStates[path]; existed {
					delete(w.lastStates, path)
					w.emit(Event{Path: path, Op: OpRemove, Timestamp: time.Now()})
				}
			}
			continue
		}

		current := fileState{modTime: info.ModTime(), size: info.Size()}
		last, existed := w.lastStates[path]
		switch {
		case !existed:
			w.lastStates[path] = current
			w.emit(Event{Path: path, Op: OpCreate, Timestamp: time.Now()})
		case current.modTime.After(last.modTime) || current.size != last.size:
			w.lastStates[path] = current
			w.emit(Event{Path: path, Op: OpModify, Timestamp: time.Now()})
		}
	}
}

func (w *Watcher) emit(event Event) {
	select {
	case w.eventChan <- event:
	default:
		w.logger.Warn("event channel full, dropping file event",
			zap.String("path", event.Path),
			zap.String("op", event.Op.String()))
	}
}

func (w *Watcher) dispatchLoop(ctx context.Context) {
	var (
		pendingEvents = make(map[string]Event)
		debounceTimer *time.Timer
		pendingMu     sync.Mutex
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event := <-w.eventChan:
			pendingMu.Lock()
			// 同一路径只保留最后一个事件
			pendingEvents[event.Path] = event
			pendingMu.Unlock()

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounceDelay, func() {
				w.mu.RLock()
				callbacks := make([]func(Event), len(w.callbacks))
				copy(callbacks, w.callbacks)
				w.mu.RUnlock()

				pendingMu.Lock()
				events := make([]Event, 0, len(pendingEvents))
				for _, evt := range pendingEvents {
					events = append(events, evt)
				}
				pendingEvents = make(map[string]Event)
				pendingMu.Unlock()

				for _, evt := range events {
					w.logger.Debug("dispatching file event",
						zap.String("path", evt.Path),
						zap.String("op", evt.Op.String()))
					for _, cb := range callbacks {
						cb(evt)
					}
				}
			})
		}
	}
}
