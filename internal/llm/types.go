// Package llm implements a streaming client for OpenAI-compatible chat
// completion endpoints.
package llm

// Config configures one client instance. Configuration is explicit per
// client; changing settings means constructing a new client, there is no
// shared mutable state between calls.
type Config struct {
	// Endpoint is either a full chat-completions URL or a bare API root
	// ending in a version segment (e.g. https://api.openai.com/v1), in
	// which case the chat-completions path is appended.
	Endpoint string
	APIKey   string
	// TimeoutSeconds bounds non-streaming requests. Streaming calls carry
	// no internal deadline; callers needing one wrap the context.
	TimeoutSeconds int
}

// CompletionParams are the per-call model settings, taken from the agent
// configuration that owns the session.
type CompletionParams struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// DeltaFunc receives one incremental fragment of assistant-generated text.
// It is invoked in stream order, exactly once per frame carrying content.
type DeltaFunc func(delta string)
