// Package progress reports how many questions a search has processed.
package progress

import (
	"sync/atomic"
)

// Reporter receives one call per processed question. Implementations must
// be safe for concurrent use; chapters report from their own goroutines.
type Reporter interface {
	Report(increment int)
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(increment int)

func (f ReporterFunc) Report(increment int) {
	f(increment)
}

// Noop discards every report.
type Noop struct{}

func (Noop) Report(int) {}

// Counter accumulates reports.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) Report(increment int) {
	c.n.Add(int64(increment))
}

func (c *Counter) Value() int {
	return int(c.n.Load())
}
