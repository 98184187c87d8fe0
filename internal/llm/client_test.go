package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Long18349276/Obsidian-Chat/internal/chat"
	ocerrors "github.com/Long18349276/Obsidian-Chat/internal/errors"
)

func sseFrame(content string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", content)
}

func TestStreamCompletionDeliversDeltasInOrder(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.URL.Path; got != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected Authorization header, got %q", got)
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload["model"] != "test-model" {
			t.Errorf("unexpected model: %v", payload["model"])
		}
		if payload["stream"] != true {
			t.Errorf("stream flag not set: %v", payload["stream"])
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frag := range []string{"Hel", "lo", " there"} {
			_, _ = fmt.Fprint(w, sseFrame(frag))
			flusher.Flush()
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{Endpoint: server.URL + "/v1", APIKey: "test-key"})

	var deltas []string
	err := client.StreamCompletion(context.Background(), CompletionParams{Model: "test-model", Temperature: 0.7, MaxTokens: 128},
		[]chat.Message{{Role: chat.RoleUser, Content: "hi"}},
		func(delta string) { deltas = append(deltas, delta) })
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
	if !reflect.DeepEqual(deltas, []string{"Hel", "lo", " there"}) {
		t.Fatalf("unexpected deltas: %#v", deltas)
	}
}

func TestStreamCompletionUsesVerbatimEndpoint(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/custom/complete" {
			t.Errorf("expected verbatim path, got %s", got)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n")
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{Endpoint: server.URL + "/custom/complete"})
	if err := client.StreamCompletion(context.Background(), CompletionParams{}, nil, nil); err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
}

func TestStreamCompletionAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{Endpoint: server.URL + "/v1", APIKey: "bad"})

	err := client.StreamCompletion(context.Background(), CompletionParams{}, nil, func(string) {
		t.Error("onDelta invoked for a failed request")
	})

	var apiErr *ocerrors.APIRequestError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIRequestError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", apiErr.StatusCode)
	}
	if got := apiErr.Error(); !strings.Contains(got, "401") || !strings.Contains(got, "invalid api key") {
		t.Fatalf("error message missing status or detail: %q", got)
	}
}

func TestStreamCompletionAPIErrorWithOpaqueBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream fell over"))
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{Endpoint: server.URL + "/v1"})

	err := client.StreamCompletion(context.Background(), CompletionParams{}, nil, nil)
	var apiErr *ocerrors.APIRequestError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIRequestError, got %v", err)
	}
	if got := apiErr.Error(); !strings.Contains(got, "502") || !strings.Contains(got, "upstream fell over") {
		t.Fatalf("raw body not surfaced: %q", got)
	}
}

func TestStreamCompletionNetworkError(t *testing.T) {
	t.Parallel()

	// Nothing listens here.
	client := NewClient(Config{Endpoint: "http://127.0.0.1:1/v1"})

	err := client.StreamCompletion(context.Background(), CompletionParams{}, nil, nil)
	var netErr *ocerrors.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if got := netErr.Error(); !strings.Contains(got, "check") {
		t.Fatalf("expected remediation hint, got %q", got)
	}
}

func TestStreamCompletionCancellationIsSilent(t *testing.T) {
	t.Parallel()

	firstFrameSent := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = fmt.Fprint(w, sseFrame("partial"))
		flusher.Flush()
		close(firstFrameSent)
		// Hold the stream open until the client aborts.
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{Endpoint: server.URL + "/v1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var deltas []string
	err := client.StreamCompletion(ctx, CompletionParams{}, nil, func(delta string) {
		deltas = append(deltas, delta)
		cancel()
	})
	if err != nil {
		t.Fatalf("cancellation must terminate silently, got %v", err)
	}
	if !reflect.DeepEqual(deltas, []string{"partial"}) {
		t.Fatalf("unexpected deltas before cancellation: %#v", deltas)
	}

	select {
	case <-firstFrameSent:
	case <-time.After(5 * time.Second):
		t.Fatal("server never sent the first frame")
	}
}

func TestStreamCompletionCancelledBeforeRequest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent after cancellation")
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Config{Endpoint: server.URL + "/v1"})
	if err := client.StreamCompletion(ctx, CompletionParams{}, nil, nil); err != nil {
		t.Fatalf("pre-cancelled call must be a silent no-op, got %v", err)
	}
}
