package id

import (
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// Strategy identifies the identifier generation algorithm to use.
type Strategy int

const (
	// StrategyKSUID generates lexicographically sortable identifiers using KSUID.
	StrategyKSUID Strategy = iota
	// StrategyUUIDv7 generates time-ordered identifiers using UUID version 7.
	StrategyUUIDv7
)

var defaultGenerator = &Generator{strategy: StrategyKSUID}

// Generator produces chat identifiers. Both strategies embed a timestamp so
// identifiers sort by creation time, and both carry enough entropy that two
// chats created within the same clock tick never collide.
type Generator struct {
	mu       sync.RWMutex
	strategy Strategy
}

// SetStrategy configures the generation strategy for the default generator.
func SetStrategy(strategy Strategy) {
	defaultGenerator.mu.Lock()
	defaultGenerator.strategy = strategy
	defaultGenerator.mu.Unlock()
}

// NewChatID generates a new chat identifier.
func NewChatID() string {
	return defaultGenerator.newIdentifier()
}

func (g *Generator) newIdentifier() string {
	g.mu.RLock()
	strategy := g.strategy
	g.mu.RUnlock()

	switch strategy {
	case StrategyUUIDv7:
		uuidv7, err := uuid.NewV7()
		if err == nil {
			return uuidv7.String()
		}
		fallthrough
	case StrategyKSUID:
		return ksuid.New().String()
	default:
		return ksuid.New().String()
	}
}
