package chat

import (
	"context"
	"sync"

	"PPLive/logger"
	"PPLive/tools/safe"

	"go.uber.org/zap"
)

type fanoutJob struct {
	payload []byte
}

// Fanout pushes one frame to every live connection. Jobs are keyed: the same
// key always lands on the same worker, so frames about one user go out in the
// order they were published.
type Fanout struct {
	each    func(func(*Conn))
	workers []chan fanoutJob
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewFanout starts the workers. each walks the current set of live
// connections; the registry's ForEach is the usual choice.
func NewFanout(workers, queue int, each func(func(*Conn))) *Fanout {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 1
	}
	f := &Fanout{
		each:    each,
		workers: make([]chan fanoutJob, workers),
		stop:    make(chan struct{}),
	}
	for i := range f.workers {
		ch := make(chan fanoutJob, queue)
		f.workers[i] = ch
		f.wg.Add(1)
		safe.Go("fanout", func() {
			defer f.wg.Done()
			f.run(ch)
		})
	}
	return f
}

func (f *Fanout) run(jobs chan fanoutJob) {
	for {
		select {
		case <-f.stop:
			return
		case job := <-jobs:
			f.each(func(c *Conn) {
				c.Send(job.payload)
			})
		}
	}
}

// Publish queues payload behind earlier jobs for the same key. It waits for
// room in the worker queue rather than dropping, unless ctx ends or the
// fanout is closed.
func (f *Fanout) Publish(ctx context.Context, key int64, payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	select {
	case <-f.stop:
		return false
	default:
	}
	ch := f.workers[uint64(key)%uint64(len(f.workers))]
	select {
	case ch <- fanoutJob{payload: payload}:
		return true
	case <-f.stop:
		return false
	case <-ctx.Done():
		logger.Warn("[Fanout] publish abandoned", zap.Int64("key", key), zap.Error(ctx.Err()))
		return false
	}
}

func (f *Fanout) Close() {
	f.once.Do(func() { close(f.stop) })
	f.wg.Wait()
}
