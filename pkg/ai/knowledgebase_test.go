package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeBaseQuery(t *testing.T) {
	var captured knowledgeBaseRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{"content": "Ayurveda balances the doshas."}]}`))
	}))
	defer ts.Close()

	kb := NewKnowledgeBaseClient(ts.URL)
	raw, err := kb.Query(context.Background(), "principles of ayurveda", domainDocuments["ayurveda"])
	require.NoError(t, err)

	assert.Equal(t, "principles of ayurveda", captured.Query)
	assert.Equal(t, "mix", captured.Mode)
	assert.Equal(t, domainDocuments["ayurveda"], captured.IDs)
	assert.Equal(t, 10, captured.TopK)
	assert.JSONEq(t, `{"results": [{"content": "Ayurveda balances the doshas."}]}`, string(raw))
}

func TestKnowledgeBaseQueryErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	kb := NewKnowledgeBaseClient(ts.URL)
	_, err := kb.Query(context.Background(), "q", []string{"doc-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestKnowledgeBaseQueryInvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer ts.Close()

	kb := NewKnowledgeBaseClient(ts.URL)
	_, err := kb.Query(context.Background(), "q", []string{"doc-1"})
	assert.Error(t, err)
}

func TestExtractKnowledgeResults(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "results key",
			in:   `{"results": [{"content": "a"}]}`,
			want: `[{"content": "a"}]`,
		},
		{
			name: "documents key",
			in:   `{"documents": [{"content": "b"}]}`,
			want: `[{"content": "b"}]`,
		},
		{
			name: "bare content is wrapped",
			in:   `{"content": "c"}`,
			want: `[{"content": "c"}]`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractKnowledgeResults(json.RawMessage(tc.in))
			require.NotNil(t, got)
			assert.JSONEq(t, tc.want, string(got))
		})
	}

	assert.Nil(t, extractKnowledgeResults(json.RawMessage(`{"status": "empty"}`)))
}

func TestSupportedDomains(t *testing.T) {
	domains := supportedDomains()
	assert.Contains(t, domains, "ayurveda")
}
