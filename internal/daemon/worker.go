package daemon

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/inshproject/insh/internal/api"
	"github.com/inshproject/insh/internal/handler"
	"github.com/inshproject/insh/internal/logger"
)

// worker drains its own queue strictly sequentially. That sequentiality is
// what gives round robin its load-spreading meaning.
type worker struct {
	index     int
	queue     *workerQueue
	responses chan<- *api.Response
	died      chan<- WorkerDied
	registry  *handler.Registry
	log       *logger.Logger
	wg        *sync.WaitGroup
}

func newWorker(index int, queue *workerQueue, responses chan<- *api.Response, died chan<- WorkerDied, registry *handler.Registry, log *logger.Logger, wg *sync.WaitGroup) *worker {
	return &worker{
		index:     index,
		queue:     queue,
		responses: responses,
		died:      died,
		registry:  registry,
		log:       log.WithPrefix(fmt.Sprintf("worker-%d", index)),
		wg:        wg,
	}
}

func (w *worker) run() {
	defer w.wg.Done()

	w.log.Info("worker running")
	for req := range w.queue.out {
		w.handle(req)
	}
	w.log.Info("worker stopping")
}

func (w *worker) handle(req *api.Request) {
	// A panicking handler kills this one request, not the worker. The
	// request still gets its final response so the client's pipeline is
	// never left waiting on a response that can no longer come.
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("handler panic on request %s: %v\n%s", req.ID, r, debug.Stack())
			w.responses <- api.NewErrorResponse(req.ID, api.ErrorCodeHandlerFailed,
				fmt.Sprintf("handler panic: %v", r))
			w.died <- WorkerDied{Worker: w.index}
		}
	}()

	w.log.Debug("handling request %s (%s)", req.ID, req.Type)

	h, ok := w.registry.Lookup(req.Type)
	if !ok {
		w.log.Warn("no handler for request type %q", req.Type)
		w.responses <- api.NewErrorResponse(req.ID, api.ErrorCodeUnsupported,
			fmt.Sprintf("unsupported request type %q", req.Type))
		return
	}

	emit := func(resp *api.Response) error {
		w.responses <- resp
		return nil
	}
	if err := h.Handle(context.Background(), req, emit); err != nil {
		w.log.Error("request %s failed: %v", req.ID, err)
		w.responses <- api.NewErrorResponse(req.ID, api.ErrorCodeHandlerFailed, err.Error())
		return
	}

	w.log.Debug("done handling request %s", req.ID)
}
