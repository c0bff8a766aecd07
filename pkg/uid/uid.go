package uid

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// New generates a new random entity identifier.
func New() string {
	return uuid.New().String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Generator issues time-ordered int64 ids for high-volume rows (consumption records).
type Generator struct {
	node *snowflake.Node
}

// NewGenerator creates a snowflake generator for the given node number (0-1023).
func NewGenerator(node int64) (*Generator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return &Generator{node: n}, nil
}

// Next returns the next id.
func (g *Generator) Next() int64 {
	return g.node.Generate().Int64()
}

var (
	defaultOnce sync.Once
	defaultGen  *Generator
)

// Default returns a process-wide generator on node 1.
func Default() *Generator {
	defaultOnce.Do(func() {
		defaultGen, _ = NewGenerator(1)
	})
	return defaultGen
}
