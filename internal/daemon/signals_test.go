package daemon

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func newTestSignalHandler(t *testing.T, trigger chan<- struct{}, exit func(int)) *signalHandler {
	t.Helper()
	return &signalHandler{
		signals: make(chan os.Signal, 2),
		trigger: trigger,
		exit:    exit,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		log:     testLogger(t),
	}
}

func TestSignalHandlerFirstSignalTriggersShutdown(t *testing.T) {
	trigger := make(chan struct{}, 1)
	h := newTestSignalHandler(t, trigger, func(code int) {
		t.Errorf("exit(%d) called on first signal", code)
	})
	go h.run()
	defer h.stop()

	h.signals <- syscall.SIGTERM
	select {
	case <-trigger:
	case <-time.After(2 * time.Second):
		t.Fatal("first signal did not trigger shutdown")
	}
}

// A second signal during shutdown forces an immediate exit with a code
// distinct from both success and ordinary failure.
func TestSignalHandlerSecondSignalForcesExit(t *testing.T) {
	trigger := make(chan struct{}, 1)
	exited := make(chan int, 1)
	h := newTestSignalHandler(t, trigger, func(code int) {
		exited <- code
	})
	go h.run()

	h.signals <- syscall.SIGTERM
	<-trigger
	h.signals <- syscall.SIGINT

	select {
	case code := <-exited:
		if code != ExitCodeForced {
			t.Errorf("forced exit code %d, want %d", code, ExitCodeForced)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second signal did not force exit")
	}
	<-h.done
}

func TestSignalHandlerStopWithoutSignal(t *testing.T) {
	trigger := make(chan struct{}, 1)
	h := newTestSignalHandler(t, trigger, func(code int) {
		t.Errorf("unexpected exit(%d)", code)
	})
	go h.run()

	h.stop()
	select {
	case <-trigger:
		t.Error("stop must not trigger a shutdown")
	default:
	}
}
