package turn

import (
	"fmt"
	"sync/atomic"
)

// Generator hands out turn IDs. The counter is shared across sessions.
type Generator struct {
	counter uint64
}

func NewGenerator() *Generator {
	return &Generator{}
}

// Next returns "<sessionID>-turn-<n>".
func (g *Generator) Next(sessionID string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-turn-%d", sessionID, n)
}
