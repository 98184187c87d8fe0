package id

import (
	"strings"
	"testing"
)

func TestNewChatIDUniqueness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		id := NewChatID()
		if id == "" {
			t.Fatal("empty id")
		}
		if seen[id] {
			t.Fatalf("duplicate id on rapid generation: %q", id)
		}
		seen[id] = true
	}
}

func TestNewChatIDIsPathSafe(t *testing.T) {
	t.Cleanup(func() { SetStrategy(StrategyKSUID) })

	for _, strategy := range []Strategy{StrategyKSUID, StrategyUUIDv7} {
		SetStrategy(strategy)
		id := NewChatID()
		if strings.ContainsAny(id, `/\. `) {
			t.Fatalf("strategy %v produced id unsafe for directory names: %q", strategy, id)
		}
	}
}
