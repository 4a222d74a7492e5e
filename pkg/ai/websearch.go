package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// SearchClient calls the external web search service.
type SearchClient struct {
	url    string
	client *http.Client
}

func NewSearchClient(url string) *SearchClient {
	return &SearchClient{
		url:    url,
		client: &http.Client{Timeout: toolTimeout},
	}
}

type searchRequest struct {
	Query            string   `json:"query"`
	FocusMode        string   `json:"focusMode"`
	OptimizationMode string   `json:"optimizationMode"`
	History          []string `json:"history"`
}

// SearchResult carries the answer text fed back to the model and the raw
// source citations handed off through the side channel.
type SearchResult struct {
	Message string          `json:"message"`
	Sources json.RawMessage `json:"sources"`
}

func (s *SearchClient) Search(ctx context.Context, query string) (*SearchResult, error) {
	body, err := json.Marshal(searchRequest{
		Query:            query,
		FocusMode:        "webSearch",
		OptimizationMode: "speed",
		History:          []string{},
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshaling search request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building search request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling search service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("search service returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading search response")
	}

	var result SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "parsing search response")
	}
	return &result, nil
}
