package client

import "time"

// SetBackoffBase shortens the read retry backoff for tests.
func SetBackoffBase(c *TrackerClient, d time.Duration) {
	c.backoffBase = d
}
