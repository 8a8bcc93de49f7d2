package daemon

import (
	"testing"
	"time"

	"github.com/inshproject/insh/internal/api"
)

// The queue accepts any number of requests without a reader on the other
// side; a slow worker backlogs its own queue instead of the scheduler.
func TestWorkerQueueNeverBlocksSender(t *testing.T) {
	q := newWorkerQueue()

	reqs := make([]*api.Request, 100)
	for i := range reqs {
		reqs[i] = api.NewCreateRequest()
		select {
		case q.in <- reqs[i]:
		case <-time.After(2 * time.Second):
			t.Fatalf("enqueue %d blocked", i)
		}
	}

	for i, want := range reqs {
		got := recvRequest(t, q.out)
		if got.ID != want.ID {
			t.Fatalf("request %d: got %s, want %s", i, got.ID, want.ID)
		}
	}
}

// Closing the queue drains the backlog to the worker before ending the
// stream, so nothing enqueued before shutdown is lost.
func TestWorkerQueueDrainsOnClose(t *testing.T) {
	q := newWorkerQueue()

	reqs := make([]*api.Request, 10)
	for i := range reqs {
		reqs[i] = api.NewCreateRequest()
		q.in <- reqs[i]
	}
	q.Close()

	var got []*api.Request
	deadline := time.After(2 * time.Second)
	for {
		select {
		case req, ok := <-q.out:
			if !ok {
				if len(got) != len(reqs) {
					t.Fatalf("drained %d requests, want %d", len(got), len(reqs))
				}
				for i := range reqs {
					if got[i].ID != reqs[i].ID {
						t.Fatalf("request %d out of order", i)
					}
				}
				return
			}
			got = append(got, req)
		case <-deadline:
			t.Fatal("timed out draining queue")
		}
	}
}
