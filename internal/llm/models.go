package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	ocerrors "github.com/Long18349276/Obsidian-Chat/internal/errors"
)

// modelEntry is one entry of a models listing. Extra provider fields are
// ignored; only the id matters.
type modelEntry struct {
	ID string `json:"id"`
}

// ListModels fetches the ids of the models the endpoint serves, sorted
// lexicographically. The listing endpoint is derived from the completion
// endpoint. Transport failures and non-success statuses both surface as
// ModelFetchError.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.modelsURL()
	c.logger.Debug("URL: GET %s", endpoint)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ocerrors.ModelFetchError{
			Err:     err,
			Message: ocerrors.NewNetworkError(err, endpoint).Message,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ocerrors.ModelFetchError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("Models request failed: %d %s", resp.StatusCode, string(body))
		return nil, &ocerrors.ModelFetchError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("models request failed with status %d", resp.StatusCode),
		}
	}

	entries, err := decodeModelEntries(body)
	if err != nil {
		return nil, &ocerrors.ModelFetchError{Err: err, Message: "models response is not valid JSON"}
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.ID != "" {
			ids = append(ids, entry.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// decodeModelEntries accepts either a {data: [...]} envelope or a bare
// array of entries.
func decodeModelEntries(body []byte) ([]modelEntry, error) {
	var envelope struct {
		Data []modelEntry `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data, nil
	}

	var bare []modelEntry
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}
