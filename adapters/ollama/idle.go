package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// ErrStreamIdle is reported when a stream produced no bytes for longer than
// the configured idle timeout.
var ErrStreamIdle = errors.New("stream idle timeout")

// idleBody cancels the request context when no read completes within the
// timeout, and always cancels it on Close so the upstream connection is
// released.
type idleBody struct {
	rc       io.ReadCloser
	cancel   context.CancelFunc
	timeout  time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
}

func newIdleBody(rc io.ReadCloser, cancel context.CancelFunc, timeout time.Duration) *idleBody {
	b := &idleBody{rc: rc, cancel: cancel, timeout: timeout}
	if timeout > 0 {
		b.timer = time.AfterFunc(timeout, func() {
			b.timedOut.Store(true)
			cancel()
		})
	}
	return b
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if b.timedOut.Load() {
		if err == nil || !errors.Is(err, io.EOF) {
			return n, fmt.Errorf("%w after %s", ErrStreamIdle, b.timeout)
		}
	}
	if n > 0 && b.timer != nil {
		b.timer.Reset(b.timeout)
	}
	return n, err
}

func (b *idleBody) Close() error {
	if b.timer != nil {
		b.timer.Stop()
	}
	b.cancel()
	return b.rc.Close()
}
