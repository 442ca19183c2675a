package provisioner

import (
	"fmt"
	"sync"
)

// Namer hands out device names from a monotonically increasing
// sequence: prefix plus a zero-padded counter. The counter is owned by
// the orchestrator and never decremented; a failed device still
// consumes its name so a retry run cannot collide with it.
type Namer struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewNamer creates a namer starting at the given number.
func NewNamer(prefix string, start int) *Namer {
	if prefix == "" {
		prefix = "RCC-Device"
	}
	if start < 1 {
		start = 1
	}
	return &Namer{prefix: prefix, next: start}
}

// NextName returns the next name in the sequence.
func (n *Namer) NextName() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	name := fmt.Sprintf("%s-%03d", n.prefix, n.next)
	n.next++
	return name
}
