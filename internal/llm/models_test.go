package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	ocerrors "github.com/Long18349276/Obsidian-Chat/internal/errors"
)

func TestListModelsDecodesEnvelope(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if got := r.URL.Path; got != "/v1/models" {
			t.Errorf("unexpected path: %s", got)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o-mini"},{"id":"claude-local"},{"id":""}]}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{Endpoint: server.URL + "/v1"})

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if !reflect.DeepEqual(models, []string{"claude-local", "gpt-4o-mini"}) {
		t.Fatalf("unexpected models: %v", models)
	}
}

func TestListModelsDecodesBareArray(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"b-model"},{"id":"a-model"}]`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{Endpoint: server.URL + "/v1"})

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if !reflect.DeepEqual(models, []string{"a-model", "b-model"}) {
		t.Fatalf("models not sorted: %v", models)
	}
}

func TestListModelsBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{Endpoint: server.URL + "/v1"})

	_, err := client.ListModels(context.Background())
	var fetchErr *ocerrors.ModelFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected ModelFetchError, got %v", err)
	}
	if fetchErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", fetchErr.StatusCode)
	}
}

func TestListModelsUnreachableEndpoint(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{Endpoint: "http://127.0.0.1:1/v1"})

	_, err := client.ListModels(context.Background())
	var fetchErr *ocerrors.ModelFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected ModelFetchError, got %v", err)
	}
}
