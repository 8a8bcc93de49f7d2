package daemon

import (
	"github.com/google/uuid"

	"github.com/inshproject/insh/internal/api"
)

// Stop is the sentinel value used on control channels. Receiving a Stop, or
// observing the channel closed, means the loop must terminate now.
type Stop struct{}

// DisconnectedClient is emitted exactly once by a client handler that
// observed its stream close normally. It is accounting information, never an
// input to shutdown decisions.
type DisconnectedClient struct {
	ClientID    uuid.UUID
	NumRequests int
}

// WorkerDied is emitted by a worker whose handler died mid-request. The
// faulting request is answered with an error final; the worker itself
// recovers and keeps draining its queue, so the pool stays at full size.
type WorkerDied struct {
	Worker int
}

// clientRequest tells the responder which client issued which request.
type clientRequest struct {
	client  uuid.UUID
	request uuid.UUID
}

// clientWriter registers a client's connection writer with the responder.
type clientWriter struct {
	client uuid.UUID
	enc    *api.Encoder
}
