package daemon

import (
	"github.com/google/uuid"

	"github.com/inshproject/insh/internal/api"
	"github.com/inshproject/insh/internal/logger"
)

// responder serializes all response writes and enforces per-client ordering:
// a client sees the complete response stream for its i-th request before
// anything from its (i+1)-th, regardless of which workers produced them.
type responder struct {
	responses   <-chan *api.Response
	tracked     <-chan clientRequest
	writers     <-chan clientWriter
	disconnects <-chan DisconnectedClient

	done chan struct{}
	log  *logger.Logger

	// owner maps a request to the client that issued it; pending holds each
	// client's open requests in issue order.
	owner    map[uuid.UUID]uuid.UUID
	encs     map[uuid.UUID]*api.Encoder
	pending  map[uuid.UUID][]uuid.UUID
	buffered map[uuid.UUID][]*api.Response
	finished map[uuid.UUID]bool

	// completed counts fully answered requests per client; expected is set
	// once the client disconnects and says how many were ever issued.
	completed map[uuid.UUID]int
	expected  map[uuid.UUID]int
}

func newResponder(responses <-chan *api.Response, tracked <-chan clientRequest, writers <-chan clientWriter, disconnects <-chan DisconnectedClient, log *logger.Logger) *responder {
	return &responder{
		responses:   responses,
		tracked:     tracked,
		writers:     writers,
		disconnects: disconnects,
		done:        make(chan struct{}),
		log:         log.WithPrefix("responder"),
		owner:       make(map[uuid.UUID]uuid.UUID),
		encs:        make(map[uuid.UUID]*api.Encoder),
		pending:     make(map[uuid.UUID][]uuid.UUID),
		buffered:    make(map[uuid.UUID][]*api.Response),
		finished:    make(map[uuid.UUID]bool),
		completed:   make(map[uuid.UUID]int),
		expected:    make(map[uuid.UUID]int),
	}
}

// run delivers responses until the response stream closes. The stream is
// closed only after every worker has exited, so a clean close means all
// responses have been produced and the remaining buffered ones are drained
// here before exit.
func (r *responder) run() {
	defer close(r.done)
	r.log.Info("responder running")

	for {
		select {
		case resp, ok := <-r.responses:
			if !ok {
				r.log.Info("response stream closed, responder exiting")
				return
			}
			r.deliver(resp)
		case cr := <-r.tracked:
			r.owner[cr.request] = cr.client
			r.pending[cr.client] = append(r.pending[cr.client], cr.request)
		case cw := <-r.writers:
			r.encs[cw.client] = cw.enc
		case dc := <-r.disconnects:
			r.clientGone(dc)
		}
	}
}

func (r *responder) deliver(resp *api.Response) {
	clientID, ok := r.owner[resp.RequestID]
	if !ok {
		clientID = r.awaitOwner(resp.RequestID)
	}

	queue := r.pending[clientID]
	if len(queue) == 0 {
		// Every delivered response belongs to a registered request, so an
		// empty queue means state corruption.
		r.log.Error("no pending requests for client %s, dropping response for %s", clientID, resp.RequestID)
		return
	}

	if queue[0] == resp.RequestID {
		r.write(clientID, resp)
		if resp.Last {
			r.requestDone(clientID, resp.RequestID)
		}
		return
	}

	// Out of order: an earlier request of this client is still streaming.
	// Hold the response back until the head completes.
	r.buffered[resp.RequestID] = append(r.buffered[resp.RequestID], resp)
	if resp.Last {
		r.finished[resp.RequestID] = true
	}
}

// awaitOwner consumes tracking registrations until the one for the given
// request appears. The registration is sent before the request can reach a
// worker, so it is always already in flight.
func (r *responder) awaitOwner(requestID uuid.UUID) uuid.UUID {
	for {
		cr := <-r.tracked
		r.owner[cr.request] = cr.client
		r.pending[cr.client] = append(r.pending[cr.client], cr.request)
		if cr.request == requestID {
			return cr.client
		}
	}
}

// awaitWriter consumes writer registrations until the given client's
// encoder appears.
func (r *responder) awaitWriter(clientID uuid.UUID) *api.Encoder {
	for {
		cw := <-r.writers
		r.encs[cw.client] = cw.enc
		if cw.client == clientID {
			return cw.enc
		}
	}
}

func (r *responder) write(clientID uuid.UUID, resp *api.Response) {
	enc, ok := r.encs[clientID]
	if !ok {
		enc = r.awaitWriter(clientID)
	}
	if err := enc.Encode(resp); err != nil {
		// The client is likely gone; its disconnect event will clean up.
		r.log.Error("error writing response %s to client %s: %v", resp.RequestID, clientID, err)
	}
}

// requestDone pops the head of the client's queue and flushes any buffered
// responses that the pop unblocks. A buffered request that already finished
// cascades into the next one.
func (r *responder) requestDone(clientID, requestID uuid.UUID) {
	delete(r.owner, requestID)
	delete(r.finished, requestID)
	r.pending[clientID] = r.pending[clientID][1:]
	r.completed[clientID]++

	for len(r.pending[clientID]) > 0 {
		head := r.pending[clientID][0]
		held, ok := r.buffered[head]
		if !ok {
			break
		}
		delete(r.buffered, head)
		for _, resp := range held {
			r.write(clientID, resp)
		}
		if !r.finished[head] {
			break
		}
		delete(r.owner, head)
		delete(r.finished, head)
		r.pending[clientID] = r.pending[clientID][1:]
		r.completed[clientID]++
	}

	r.maybeForget(clientID)
}

func (r *responder) clientGone(dc DisconnectedClient) {
	r.log.Info("client %s disconnected after %d requests", dc.ClientID, dc.NumRequests)
	r.expected[dc.ClientID] = dc.NumRequests
	r.maybeForget(dc.ClientID)
}

// maybeForget drops a client's state once it has disconnected and every
// request it ever issued has been fully answered.
func (r *responder) maybeForget(clientID uuid.UUID) {
	expected, gone := r.expected[clientID]
	if !gone || r.completed[clientID] < expected {
		return
	}
	delete(r.encs, clientID)
	delete(r.pending, clientID)
	delete(r.completed, clientID)
	delete(r.expected, clientID)
}
