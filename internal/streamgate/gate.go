// Package streamgate serializes process shutdown against in-flight file
// streams. Any number of shared holders may stream concurrently; shutdown
// takes the exclusive side exactly once, waits out the active holders, and
// from that point on refuses new shared acquisitions so shutdown latency is
// bounded by the longest running stream instead of new arrivals.
package streamgate

import (
	"context"
	"errors"
	"sync"
)

// ErrShuttingDown 表示关停已经开始，不再受理新的流式读取。
var ErrShuttingDown = errors.New("server is shutting down")

// Gate 是服务实例级的共享/独占闸门。
type Gate struct {
	mu      sync.Mutex
	active  int
	closed  bool
	drained chan struct{}
}

// New 构造一个可用的闸门。
func New() *Gate {
	return &Gate{
		drained: make(chan struct{}),
	}
}

// Acquire 获取一个共享持有，返回释放函数。释放函数可安全多次调用，
// 调用方必须在流结束的每条退出路径上执行它（defer）。
// 关停开始后返回 ErrShuttingDown。
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrShuttingDown
	}
	g.active++
	g.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			g.active--
			if g.closed && g.active == 0 {
				close(g.drained)
			}
			g.mu.Unlock()
		})
	}
	return release, nil
}

// Shutdown 取得独占持有：标记关停、阻塞等待所有在途共享持有释放。
// ctx 超时后返回错误，调用方应继续关停并由监听器关闭中止残余流。
// 可重复调用，后续调用等待同一次 drain 完成。
func (g *Gate) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if !g.closed {
		g.closed = true
		if g.active == 0 {
			close(g.drained)
		}
	}
	g.mu.Unlock()

	select {
	case <-g.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active 返回当前共享持有数，供诊断输出。
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Closed 返回关停是否已经开始。
func (g *Gate) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}
