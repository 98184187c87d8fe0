package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Long18349276/Obsidian-Chat/internal/chat"
	ocerrors "github.com/Long18349276/Obsidian-Chat/internal/errors"
	"github.com/Long18349276/Obsidian-Chat/internal/logging"
)

const (
	completionsPath = "/chat/completions"
	modelsPath      = "/models"
	// streamReadChunk is the read granularity for streaming bodies; frames
	// larger than this are reassembled by the decoder's line buffer.
	streamReadChunk = 64 * 1024
)

// apiRootPattern matches endpoints that are a bare API root ending in a
// version segment, e.g. https://api.openai.com/v1.
var apiRootPattern = regexp.MustCompile(`/v\d+$`)

// Client speaks the OpenAI-compatible chat completions API. One streaming
// call per session at a time is a caller contract; the client holds no
// cross-call state and performs no internal retries.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	// timeout bounds non-streaming requests only; a stream lives as long
	// as the model generates and is ended by ctx, [DONE], or EOF.
	timeout time.Duration
	logger  logging.Logger
}

// NewClient constructs a client from explicit configuration.
func NewClient(cfg Config) *Client {
	var timeout time.Duration
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logging.NewComponentLogger("CompletionClient"),
	}
}

// completionsURL normalizes the configured endpoint: a bare API root gets
// the chat-completions path appended, anything else is used verbatim.
func (c *Client) completionsURL() string {
	if apiRootPattern.MatchString(c.endpoint) {
		return c.endpoint + completionsPath
	}
	return c.endpoint
}

// modelsURL derives the models listing endpoint from the completion
// endpoint by stripping the chat-completions suffix.
func (c *Client) modelsURL() string {
	return strings.TrimSuffix(c.endpoint, completionsPath) + modelsPath
}

// StreamCompletion sends messages to the completion endpoint and invokes
// onDelta for every content fragment, in order, as the reply is generated.
// Cancelling ctx terminates the stream silently; cancellation is a normal
// terminal state, not an error. A partial reply accumulated by the caller
// before failure or cancellation remains valid.
func (c *Client) StreamCompletion(ctx context.Context, params CompletionParams, messages []chat.Message, onDelta DeltaFunc) error {
	if ctx.Err() != nil {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"model":       params.Model,
		"messages":    convertMessages(messages),
		"temperature": params.Temperature,
		"max_tokens":  params.MaxTokens,
		"stream":      true,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.completionsURL()
	c.logger.Debug("=== Completion Request ===")
	c.logger.Debug("URL: POST %s", endpoint)
	c.logger.Debug("Model: %s, messages: %d", params.Model, len(messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isCancellation(ctx, err) {
			c.logger.Debug("Stream cancelled before response")
			return nil
		}
		c.logger.Debug("HTTP request failed: %v", err)
		return ocerrors.NewNetworkError(err, endpoint)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("Status: %d %s", resp.StatusCode, resp.Status)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("read error response: %w", readErr)
		}
		c.logger.Debug("Error response body: %s", string(respBody))
		return &ocerrors.APIRequestError{
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(resp.StatusCode, respBody),
		}
	}

	return c.consumeStream(ctx, resp.Body, onDelta)
}

// consumeStream reads the chunked response body and feeds it through the
// SSE line decoder until [DONE], EOF, cancellation, or a read failure.
func (c *Client) consumeStream(ctx context.Context, body io.Reader, onDelta DeltaFunc) error {
	decoder := newEventDecoder(c.logger)
	buf := make([]byte, streamReadChunk)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, delta := range decoder.feed(buf[:n]) {
				if ctx.Err() != nil {
					return nil
				}
				if onDelta != nil {
					onDelta(delta)
				}
			}
			if decoder.done {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if isCancellation(ctx, err) {
				c.logger.Debug("Stream cancelled mid-read")
				return nil
			}
			return fmt.Errorf("read response stream: %w", err)
		}
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func convertMessages(msgs []chat.Message) []map[string]any {
	result := make([]map[string]any, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, map[string]any{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}
	return result
}

// apiErrorMessage builds a human-readable message from a non-success
// response, preferring the provider's {error:{message}} detail over the
// raw body.
func apiErrorMessage(statusCode int, body []byte) string {
	detail := strings.TrimSpace(string(body))
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		detail = envelope.Error.Message
	}
	if detail == "" {
		return fmt.Sprintf("API request failed with status %d", statusCode)
	}
	return fmt.Sprintf("API request failed with status %d: %s", statusCode, detail)
}

// isCancellation reports whether err resulted from the caller cancelling
// ctx rather than from the transport itself.
func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}
