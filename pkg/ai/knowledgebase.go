package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// domainDocuments maps a knowledge domain to the document ids indexed for it
// in the knowledge base service.
var domainDocuments = map[string][]string{
	"ayurveda": {"doc-26a92f8bc882e5cee7b30c15a6827d3e"},
}

func supportedDomains() []string {
	domains := make([]string, 0, len(domainDocuments))
	for d := range domainDocuments {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// KnowledgeBaseClient queries the curated knowledge base service with
// domain-scoped document filtering.
type KnowledgeBaseClient struct {
	url    string
	client *http.Client
}

func NewKnowledgeBaseClient(url string) *KnowledgeBaseClient {
	return &KnowledgeBaseClient{
		url:    url,
		client: &http.Client{Timeout: toolTimeout},
	}
}

type knowledgeBaseRequest struct {
	Query string   `json:"query"`
	Mode  string   `json:"mode"`
	IDs   []string `json:"ids"`
	TopK  int      `json:"top_k"`
}

// Query runs one knowledge base lookup scoped to a domain's documents and
// returns the service's raw JSON response.
func (k *KnowledgeBaseClient) Query(ctx context.Context, query string, documentIDs []string) (json.RawMessage, error) {
	body, err := json.Marshal(knowledgeBaseRequest{
		Query: query,
		Mode:  "mix",
		IDs:   documentIDs,
		TopK:  10,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshaling knowledge base request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building knowledge base request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling knowledge base service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("knowledge base service returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading knowledge base response")
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New("knowledge base service returned invalid JSON")
	}
	return json.RawMessage(data), nil
}

// extractKnowledgeResults pulls the matched documents out of a knowledge base
// response; services differ on the key they use.
func extractKnowledgeResults(raw json.RawMessage) json.RawMessage {
	for _, key := range []string{"results", "documents"} {
		if v := gjson.GetBytes(raw, key); v.Exists() {
			return json.RawMessage(v.Raw)
		}
	}
	if v := gjson.GetBytes(raw, "content"); v.Exists() {
		wrapped, err := json.Marshal([]map[string]interface{}{{"content": v.Value()}})
		if err != nil {
			return nil
		}
		return wrapped
	}
	return nil
}
