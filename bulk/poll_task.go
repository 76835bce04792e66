package bulk

import (
	"context"
	"time"
)

// pollTask runs a function on a fixed interval in its own goroutine until the
// function reports it is finished or the task is stopped. The first run happens
// one interval after start; ticks that arrive while a run is in flight are dropped.
type pollTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startPollTask(interval time.Duration, poll func(ctx context.Context) (finished bool)) *pollTask {
	ctx, cancel := context.WithCancel(context.Background())
	t := &pollTask{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if poll(ctx) {
					return
				}
			}
		}
	}()
	return t
}

// Stop cancels the task and waits for its goroutine to exit. Safe to call more than once.
func (t *pollTask) Stop() {
	t.cancel()
	<-t.done
}
