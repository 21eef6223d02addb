package alerting

import (
	"golang.org/x/sync/errgroup"

	"ruleguard/util/goroutine"
)

// forEach runs fn once per id concurrently and waits for all of them. The
// first error is returned; a failure does not cancel the other requests and
// partial successes are not reported.
func (c *Client) forEach(op string, ids []string, fn func(id string) error) error {
	if len(ids) == 0 {
		return nil
	}

	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() (err error) {
			defer goroutine.RecoverError("alert-"+op, c.logger, &err)
			return fn(id)
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Warnw("Bulk alert operation failed", "operation", op, "count", len(ids), "error", err)
		return err
	}
	c.logger.Infow("Bulk alert operation completed", "operation", op, "count", len(ids))
	return nil
}
