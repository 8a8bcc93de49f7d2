package daemon

import (
	"github.com/inshproject/insh/internal/api"
	"github.com/inshproject/insh/internal/logger"
)

// scheduler owns the shared inbound request queue and assigns every request
// to one worker queue by round robin. Round robin is load-oblivious on
// purpose; its determinism is a correctness property the tests rely on.
type scheduler struct {
	inbound <-chan *api.Request
	queues  []*workerQueue
	stop    chan Stop
	done    chan struct{}
	metrics *Metrics
	log     *logger.Logger
}

func newScheduler(inbound <-chan *api.Request, queues []*workerQueue, metrics *Metrics, log *logger.Logger) *scheduler {
	return &scheduler{
		inbound: inbound,
		queues:  queues,
		stop:    make(chan Stop, 1),
		done:    make(chan struct{}),
		metrics: metrics,
		log:     log.WithPrefix("scheduler"),
	}
}

func (s *scheduler) run() {
	defer close(s.done)
	s.log.Info("scheduler running")

	cursor := 0
	for {
		// Stop is re-checked every iteration so shutdown latency is
		// bounded by at most one dispatch.
		select {
		case <-s.stop:
			s.log.Info("scheduler stopping")
			return
		default:
		}

		select {
		case <-s.stop:
			s.log.Info("scheduler stopping")
			return
		case req, ok := <-s.inbound:
			if !ok {
				// Closed inbound means no sender can exist anymore;
				// treat it exactly like Stop.
				s.log.Info("inbound queue closed, scheduler stopping")
				return
			}
			s.log.Debug("dispatching request %s to worker %d", req.ID, cursor)
			s.queues[cursor].in <- req
			s.metrics.observeDispatch(cursor)
			cursor = (cursor + 1) % len(s.queues)
		}
	}
}

// halt tells the scheduler to stop and waits for its loop to exit. A request
// already handed to a worker is not revoked.
func (s *scheduler) halt() {
	s.stop <- Stop{}
	<-s.done
}
