package daemon

import (
	"testing"
	"time"

	"github.com/inshproject/insh/internal/api"
	"github.com/inshproject/insh/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.LevelNone, "", "")
	if err != nil {
		t.Fatalf("creating test logger: %v", err)
	}
	return log
}

func recvRequest(t *testing.T, ch <-chan *api.Request) *api.Request {
	t.Helper()
	select {
	case req := <-ch:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched request")
		return nil
	}
}

// Dispatch is strict round robin over worker index, independent of load:
// with two workers, requests 1..4 land on workers 0,1,0,1.
func TestSchedulerRoundRobin(t *testing.T) {
	inbound := make(chan *api.Request, 4)
	queues := []*workerQueue{newWorkerQueue(), newWorkerQueue()}
	s := newScheduler(inbound, queues, nil, testLogger(t))
	go s.run()
	defer s.halt()

	reqs := make([]*api.Request, 4)
	for i := range reqs {
		reqs[i] = api.NewCreateRequest()
		inbound <- reqs[i]
	}

	got0a := recvRequest(t, queues[0].out)
	got1a := recvRequest(t, queues[1].out)
	got0b := recvRequest(t, queues[0].out)
	got1b := recvRequest(t, queues[1].out)

	if got0a.ID != reqs[0].ID || got0b.ID != reqs[2].ID {
		t.Errorf("worker 0 received %s, %s; want %s, %s", got0a.ID, got0b.ID, reqs[0].ID, reqs[2].ID)
	}
	if got1a.ID != reqs[1].ID || got1b.ID != reqs[3].ID {
		t.Errorf("worker 1 received %s, %s; want %s, %s", got1a.ID, got1b.ID, reqs[1].ID, reqs[3].ID)
	}
}

func TestSchedulerHaltStopsDispatch(t *testing.T) {
	inbound := make(chan *api.Request, 1)
	queues := []*workerQueue{newWorkerQueue()}
	s := newScheduler(inbound, queues, nil, testLogger(t))
	go s.run()

	s.halt()

	inbound <- api.NewCreateRequest()
	select {
	case req := <-queues[0].out:
		t.Errorf("request %s dispatched after halt", req.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

// A closed inbound queue stops the scheduler the same way Stop does.
func TestSchedulerStopsOnClosedInbound(t *testing.T) {
	inbound := make(chan *api.Request)
	queues := []*workerQueue{newWorkerQueue()}
	s := newScheduler(inbound, queues, nil, testLogger(t))
	go s.run()

	close(inbound)
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on closed inbound queue")
	}
}
