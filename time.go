package flow

import "github.com/xtaci/flowgraph/clock"

// Millis is a duration expressed in milliseconds, the base unit every
// timeout/scheduling parameter in this package is normalized to. It is an
// alias of clock.Millis so callers can pass clock.Seconds(1) etc. directly.
type Millis = clock.Millis
