package mb

import "protoflight/osal"

// Pipe is a bounded receiver queue identified by a stable, 0-based index
// assigned at creation and never reused (spec §3).
type Pipe struct {
	Index int
	queue *osal.Queue
}
