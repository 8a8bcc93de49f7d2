package daemon

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/inshproject/insh/internal/api"
	"github.com/inshproject/insh/internal/config"
	"github.com/inshproject/insh/internal/handler"
	"github.com/inshproject/insh/internal/logger"
	"github.com/inshproject/insh/internal/paths"
	"github.com/inshproject/insh/internal/pidfile"
)

const (
	acceptDeadline  = 1 * time.Second
	handlerJoinWait = 5 * time.Second

	// Accept errors like EMFILE are usually transient; the loop retries a
	// few times with a delay before declaring the listener dead.
	maxAcceptFailures = 5
	acceptRetryDelay  = 100 * time.Millisecond
)

// ErrAlreadyRunning is returned by Run when the pidfile points at a live
// process.
var ErrAlreadyRunning = errors.New("daemon already running")

// Daemon wires the accept loop, client handlers, scheduler, workers and
// responder together and owns their lifecycle.
type Daemon struct {
	cfg      *config.Config
	registry *handler.Registry
	log      *logger.Logger

	promReg *prometheus.Registry
	metrics *Metrics

	listener *net.UnixListener
	pidf     *pidfile.Pidfile

	inbound     chan *api.Request
	responses   chan *api.Response
	tracked     chan clientRequest
	writers     chan clientWriter
	disconnects [2]chan DisconnectedClient
	died        chan WorkerDied

	mu       sync.RWMutex
	handlers map[uuid.UUID]*clientHandler

	trigger     chan struct{}
	triggerOnce sync.Once
}

func New(cfg *config.Config, log *logger.Logger) *Daemon {
	promReg := prometheus.NewRegistry()
	d := &Daemon{
		cfg:       cfg,
		registry:  handler.NewRegistry(),
		log:       log,
		promReg:   promReg,
		metrics:   NewMetrics(promReg),
		inbound:   make(chan *api.Request, cfg.QueueSize),
		responses: make(chan *api.Response, cfg.QueueSize),
		tracked:   make(chan clientRequest, cfg.QueueSize),
		writers:   make(chan clientWriter, 16),
		died:      make(chan WorkerDied, cfg.Workers),
		handlers:  make(map[uuid.UUID]*clientHandler),
		trigger:   make(chan struct{}, 1),
	}
	d.disconnects[0] = make(chan DisconnectedClient, 16)
	d.disconnects[1] = make(chan DisconnectedClient, 16)
	return d
}

// Run starts every subsystem, blocks until a shutdown trigger and then
// tears everything down in dependency order. It returns once the daemon has
// fully stopped.
func (d *Daemon) Run() error {
	if err := paths.EnsureDirs(); err != nil {
		return err
	}

	pidPath, err := paths.PidFile()
	if err != nil {
		return err
	}
	d.pidf = pidfile.New(pidPath)
	if _, alive := d.pidf.Alive(); alive {
		return ErrAlreadyRunning
	}

	socket, err := d.cfg.Socket()
	if err != nil {
		return err
	}
	// A previous daemon that died hard leaves the socket file behind; with
	// no live pid it is safe to rebind.
	if err := os.Remove(socket); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unix", socket)
	if err != nil {
		return fmt.Errorf("resolving socket address: %w", err)
	}
	d.listener, err = net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", socket, err)
	}

	if err := d.pidf.Write(); err != nil {
		d.listener.Close()
		return fmt.Errorf("writing pidfile: %w", err)
	}

	d.log.Info("daemon listening on %s with %d workers", socket, d.cfg.Workers)

	resp := newResponder(d.responses, d.tracked, d.writers, d.disconnects[0], d.log)
	go resp.run()

	var workerWG sync.WaitGroup
	queues := make([]*workerQueue, d.cfg.Workers)
	for i := range queues {
		queues[i] = newWorkerQueue()
		workerWG.Add(1)
		go newWorker(i, queues[i], d.responses, d.died, d.registry, d.log, &workerWG).run()
	}

	sched := newScheduler(d.inbound, queues, d.metrics, d.log)
	go sched.run()

	faultsDone := make(chan struct{})
	go d.watchFaults(faultsDone)

	reaperDone := make(chan struct{})
	go d.reap(reaperDone)

	sigs := newSignalHandler(d.trigger, d.log)
	go sigs.run()

	var metricsSrv *metricsServer
	if d.cfg.MetricsAddr != "" {
		metricsSrv = newMetricsServer(d.cfg.MetricsAddr, d.promReg, d.log)
		metricsSrv.start()
	}

	acceptStop := make(chan struct{})
	acceptDone := make(chan struct{})
	go d.acceptLoop(acceptStop, acceptDone)

	<-d.trigger
	d.log.Info("shutting down")

	// New connections first: nothing may enter the system while it drains.
	close(acceptStop)
	d.listener.Close()
	<-acceptDone

	d.stopClientHandlers()

	// With the handlers gone no new requests can arrive; the scheduler may
	// stop and the workers drain whatever was already queued.
	sched.halt()
	for _, q := range queues {
		q.Close()
	}
	workerWG.Wait()

	// The responder outlives the workers: it must consume every response
	// they produced. Closing the channel lets it drain and exit.
	close(d.responses)
	<-resp.done
	close(d.died)
	<-faultsDone
	close(d.disconnects[1])
	<-reaperDone

	if metricsSrv != nil {
		metricsSrv.stop()
	}
	// The signal handler stops last so a second signal still forces exit
	// at any point during teardown.
	sigs.stop()

	if err := os.Remove(socket); err != nil && !os.IsNotExist(err) {
		d.log.Warn("removing socket: %v", err)
	}
	if err := d.pidf.Remove(); err != nil {
		d.log.Warn("removing pidfile: %v", err)
	}
	d.log.Info("daemon stopped")
	return nil
}

// Shutdown triggers the same orderly teardown as a termination signal. Safe
// to call more than once.
func (d *Daemon) Shutdown() {
	d.triggerOnce.Do(func() {
		d.trigger <- struct{}{}
	})
}

func (d *Daemon) acceptLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	log := d.log.WithPrefix("accept")
	log.Info("accepting connections")

	failures := 0
	for {
		select {
		case <-stop:
			return
		default:
		}

		// The deadline bounds how long a pending stop waits behind a
		// blocked Accept.
		d.listener.SetDeadline(time.Now().Add(acceptDeadline))
		conn, err := d.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-stop:
				return
			default:
			}
			// A closed listener cannot recover; neither can persistent
			// failures. Either one is fatal for the whole daemon, not
			// just the accept loop.
			failures++
			if errors.Is(err, net.ErrClosed) || failures >= maxAcceptFailures {
				log.Error("listener failed, shutting down: %v", err)
				d.Shutdown()
				return
			}
			log.Warn("accept failed (attempt %d): %v", failures, err)
			time.Sleep(acceptRetryDelay)
			continue
		}
		failures = 0

		client := &Client{ID: uuid.New(), conn: conn}
		log.Info("client %s connected", client.ID)

		h := newClientHandler(client,
			d.inbound, d.tracked,
			[]chan<- DisconnectedClient{d.disconnects[0], d.disconnects[1]},
			d.metrics, d.log)
		d.writers <- clientWriter{client: client.ID, enc: h.enc}
		d.trackClient(client.ID, h)
		d.metrics.observeConnect()
		go func() {
			h.run()
			d.untrackClient(client.ID)
		}()
	}
}

func (d *Daemon) trackClient(id uuid.UUID, h *clientHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[id] = h
}

func (d *Daemon) untrackClient(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, id)
}

// stopClientHandlers delivers the private stop to every live handler and
// waits, boundedly, for each to exit.
func (d *Daemon) stopClientHandlers() {
	d.mu.RLock()
	handlers := make([]*clientHandler, 0, len(d.handlers))
	for _, h := range d.handlers {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		h.stop()
	}
	for _, h := range handlers {
		select {
		case <-h.done:
		case <-time.After(handlerJoinWait):
			d.log.Warn("client handler for %s did not stop in time", h.client.ID)
		}
	}
}

// watchFaults logs handler faults. Faults are reported, never retried; the
// faulting request already got its error final from the worker.
func (d *Daemon) watchFaults(done chan<- struct{}) {
	defer close(done)
	for ev := range d.died {
		d.log.Error("handler died in worker %d", ev.Worker)
		d.metrics.observeWorkerFault()
	}
}

// reap consumes the coordinator's copy of disconnect events, keeping the
// handler registry and gauges in step with the responder's view.
func (d *Daemon) reap(done chan<- struct{}) {
	defer close(done)
	for dc := range d.disconnects[1] {
		d.untrackClient(dc.ClientID)
		d.metrics.observeDisconnect()
	}
}
