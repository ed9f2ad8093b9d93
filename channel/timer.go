package channel

import "time"

// retryTimer is a cancellable, idempotent-to-cancel periodic timer used for
// the client's handshake-hello retry. A bare background goroutine never
// keeps the Go runtime alive the way a JS interval would (there is no
// process-lifetime concern to solve here), but tests still need a clean way
// to stop it so it does not fire into a closed or replaced Channel.
type retryTimer struct {
	stopCh chan struct{}
	done   chan struct{}
}

func startRetryTimer(interval time.Duration, fn func()) *retryTimer {
	t := &retryTimer{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-t.stopCh:
				return
			}
		}
	}()
	return t
}

// cancel stops the timer. Safe to call more than once and from any
// goroutine; it does not wait for an in-flight fn() invocation to finish.
func (t *retryTimer) cancel() {
	select {
	case <-t.stopCh:
	default:
		close(t.stopCh)
	}
}
