package daemon

import "github.com/inshproject/insh/internal/api"

// workerQueue is the unbounded FIFO feeding one worker. A slow worker
// accumulates its own backlog without ever blocking the scheduler; only the
// scheduler's shared inbound queue is bounded.
type workerQueue struct {
	in  chan *api.Request
	out chan *api.Request
}

func newWorkerQueue() *workerQueue {
	q := &workerQueue{
		in:  make(chan *api.Request),
		out: make(chan *api.Request),
	}
	go q.pump()
	return q
}

// pump shuttles requests from in to out, buffering in between. When in is
// closed it drains the buffer to out and closes out, so the worker sees every
// request that was enqueued before shutdown.
func (q *workerQueue) pump() {
	var backlog []*api.Request
	for {
		var out chan *api.Request
		var next *api.Request
		if len(backlog) > 0 {
			out = q.out
			next = backlog[0]
		}

		select {
		case req, ok := <-q.in:
			if !ok {
				for _, r := range backlog {
					q.out <- r
				}
				close(q.out)
				return
			}
			backlog = append(backlog, req)
		case out <- next:
			backlog = backlog[1:]
		}
	}
}

// Close marks the queue closed for sending. The worker drains what remains.
func (q *workerQueue) Close() {
	close(q.in)
}
