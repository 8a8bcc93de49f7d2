package daemon

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/inshproject/insh/internal/logger"
)

// ExitCodeForced is the process exit code used when a second termination
// signal arrives before shutdown finished.
const ExitCodeForced = 2

// signalHandler turns the first SIGINT/SIGTERM/SIGQUIT into an orderly
// shutdown trigger and a second one into an immediate forced exit. The
// signal source and exit function are injectable for tests.
type signalHandler struct {
	signals chan os.Signal
	trigger chan<- struct{}
	exit    func(int)
	quit    chan struct{}
	done    chan struct{}
	log     *logger.Logger
}

func newSignalHandler(trigger chan<- struct{}, log *logger.Logger) *signalHandler {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	return &signalHandler{
		signals: sigCh,
		trigger: trigger,
		exit:    os.Exit,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		log:     log.WithPrefix("signals"),
	}
}

func (h *signalHandler) run() {
	defer close(h.done)

	select {
	case sig := <-h.signals:
		h.log.Info("received signal %v, shutting down", sig)
		h.trigger <- struct{}{}
	case <-h.quit:
		return
	}

	select {
	case sig := <-h.signals:
		h.log.Warn("received second signal %v, forcing exit", sig)
		h.exit(ExitCodeForced)
	case <-h.quit:
	}
}

// stop ends the handler without touching the signal channel; signal.Notify
// may still send on it.
func (h *signalHandler) stop() {
	signal.Stop(h.signals)
	close(h.quit)
	<-h.done
}
