// Package stop provides the graceful-shutdown primitives shared by every
// long-lived actor in Serma (the spider, the enrichment pool, cleanup,
// storage, the HTTP frontend): a Stopper reports a Result, and a Group
// fans Stop() out across many Stoppers and joins their errors.
package stop

import "errors"

// Channel is closed by the stopping goroutine once shutdown has finished;
// Done first sends the shutdown error (which may be nil) on it.
type Channel chan error

// Done marks the channel as finished, sending err (which may be nil).
func (c Channel) Done(err error) {
	c <- err
	close(c)
}

// Result is returned by Stop(); callers select on C or call Err() to
// block until shutdown completes.
type Result struct {
	C <-chan error
}

// Err blocks until the stop completes and returns its error, if any.
func (r Result) Err() error {
	return <-r.C
}

func (c Channel) Result() Result {
	return Result{C: c}
}

// Stopper is implemented by any actor owning goroutines, sockets, files,
// or other resources that must be released on shutdown.
type Stopper interface {
	Stop() Result
}

// Group fans Stop() out to every registered Stopper concurrently and
// joins their results into a single combined error.
type Group struct {
	stoppers []Stopper
}

// NewGroup returns an empty Group.
func NewGroup() *Group {
	return &Group{}
}

// Add registers s to be stopped when the Group is stopped.
func (g *Group) Add(s Stopper) {
	g.stoppers = append(g.stoppers, s)
}

// Stop concurrently stops every registered Stopper and returns a Result
// that completes once all of them have finished.
func (g *Group) Stop() Result {
	c := make(Channel)
	go func() {
		errs := make([]error, len(g.stoppers))
		done := make(chan struct{}, len(g.stoppers))
		for i, s := range g.stoppers {
			go func(i int, s Stopper) {
				errs[i] = s.Stop().Err()
				done <- struct{}{}
			}(i, s)
		}
		for range g.stoppers {
			<-done
		}
		c.Done(errors.Join(errs...))
	}()
	return c.Result()
}
