package daemon

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/inshproject/insh/internal/api"
	"github.com/inshproject/insh/internal/logger"
)

// Client is one connected process: an identity plus the exclusively owned
// stream to it.
type Client struct {
	ID   uuid.UUID
	conn net.Conn
}

// clientHandler owns the read side of one connection. It forwards parsed
// requests into the scheduler's inbound queue and exits on stream close,
// read error or private Stop.
type clientHandler struct {
	client      *Client
	dec         *api.Decoder
	enc         *api.Encoder
	requests    chan<- *api.Request
	tracked     chan<- clientRequest
	disconnects []chan<- DisconnectedClient

	stopOnce sync.Once
	stopCh   chan Stop
	done     chan struct{}
	metrics  *Metrics
	log      *logger.Logger
}

func newClientHandler(client *Client, requests chan<- *api.Request, tracked chan<- clientRequest, disconnects []chan<- DisconnectedClient, metrics *Metrics, log *logger.Logger) *clientHandler {
	return &clientHandler{
		client:      client,
		dec:         api.NewDecoder(client.conn),
		enc:         api.NewEncoder(client.conn),
		requests:    requests,
		tracked:     tracked,
		disconnects: disconnects,
		stopCh:      make(chan Stop),
		done:        make(chan struct{}),
		metrics:     metrics,
		log:         log.WithPrefix("client-" + client.ID.String()[:8]),
	}
}

func (h *clientHandler) run() {
	defer close(h.done)
	// Every exit path closes the connection: an aborted connection just
	// closes from the client's point of view.
	defer h.client.conn.Close()
	h.log.Info("client handler running for client %s", h.client.ID)

	forwarded := 0
	for {
		var req api.Request
		if err := h.dec.Decode(&req); err != nil {
			if h.stopped() {
				// Private Stop: exit immediately, no disconnect event,
				// even if unread data remains.
				h.log.Info("client handler stopped for client %s", h.client.ID)
				return
			}
			if errors.Is(err, io.EOF) {
				h.log.Info("client %s disconnected", h.client.ID)
			} else {
				// Transient I/O and protocol errors abort only this
				// connection.
				h.log.Error("error reading from client %s: %v", h.client.ID, err)
			}
			h.emitDisconnected(forwarded)
			return
		}

		if req.ID == uuid.Nil {
			req.ID = uuid.New()
		}
		h.log.Debug("received request %s (%s)", req.ID, req.Type)

		// The responder must learn which client owns the request before a
		// worker can produce its response, so register first.
		select {
		case h.tracked <- clientRequest{client: h.client.ID, request: req.ID}:
		case <-h.stopCh:
			h.log.Info("client handler stopped for client %s", h.client.ID)
			return
		}

		// A full inbound queue blocks here. Deliberate backpressure: it
		// penalizes only this client.
		select {
		case h.requests <- &req:
		case <-h.stopCh:
			h.log.Info("client handler stopped for client %s", h.client.ID)
			return
		}
		forwarded++
		h.metrics.observeRequest()
	}
}

// stop delivers the private Stop. Closing the connection is what unblocks a
// read in progress; there is no portable way to interrupt it otherwise.
func (h *clientHandler) stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.client.conn.Close()
	})
}

func (h *clientHandler) stopped() bool {
	select {
	case <-h.stopCh:
		return true
	default:
		return false
	}
}

func (h *clientHandler) emitDisconnected(forwarded int) {
	dc := DisconnectedClient{
		ClientID:    h.client.ID,
		NumRequests: forwarded,
	}
	for _, ch := range h.disconnects {
		ch <- dc
	}
}
