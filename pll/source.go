package pll

import "context"

// Sample holds the two 16-bit port timer values captured at one reference edge.
type Sample struct {
	Mclk uint16 // feedback clock timer
	Ref  uint16 // reference timer, ignored when compensation is disabled
}

// EdgeSource delivers one sample per reference clock edge.
type EdgeSource interface {
	// NextEdge blocks until the next reference edge has been captured.
	NextEdge(ctx context.Context) (Sample, error)
}
