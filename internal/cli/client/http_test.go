package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "akb_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestAPIClient_DecodeEnvelope(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"results":[{"segment_id":"s1","similarity":0.91,"document_title":"FAQ"}],"threshold":0.3,"count":1}}`))
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(testKey, srv.URL)

	var resp SearchResponse
	err := api.Decode(context.Background(), http.MethodPost, "/agents/a1/search", SearchRequest{Query: "refunds"}, &resp)
	require.NoError(t, err)

	assert.Equal(t, "Bearer "+testKey, gotAuth)
	assert.Equal(t, "/agents/a1/search", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "refunds", gotBody["query"])
	assert.NotContains(t, gotBody, "similarity_threshold")

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "s1", resp.Results[0].SegmentID)
	assert.InDelta(t, 0.91, resp.Results[0].Similarity, 1e-9)
	assert.Equal(t, 1, resp.Count)
}

func TestAPIClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"error":"agent has no embedding API key","code":"MISSING_CREDENTIAL"}`))
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(testKey, srv.URL)
	_, err := api.Post(context.Background(), "/agents/a1/search", SearchRequest{Query: "q"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "MISSING_CREDENTIAL", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "agent has no embedding API key")
}

func TestAPIClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(testKey, srv.URL)
	_, err := api.Get(context.Background(), "/agents")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "bad gateway")
}

func TestAPIClient_NilBodySendsNothing(t *testing.T) {
	var length int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		length = len(data)
		_, _ = w.Write([]byte(`{"success":true,"data":{"document_id":"d1","kind":"block","policy":"semantic","created":2}}`))
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(testKey, srv.URL)
	var result AppendResult
	require.NoError(t, api.Decode(context.Background(), http.MethodPost, "/documents/d1/blocks/import", nil, &result))

	assert.Zero(t, length)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, "semantic", result.Policy)
}

func TestNewAPIClientWithCmd_FlagsWin(t *testing.T) {
	t.Setenv("AGENTKB_API_KEY", "akb_env")
	t.Setenv("AGENTKB_API_URL", "http://env:8080")

	cmd := &cobra.Command{}
	cmd.Flags().String("api-key", "", "")
	cmd.Flags().String("api-url", "", "")
	require.NoError(t, cmd.Flags().Set("api-key", testKey))
	require.NoError(t, cmd.Flags().Set("api-url", "http://flag:9090"))

	api, err := NewAPIClientWithCmd(cmd)
	require.NoError(t, err)
	assert.Equal(t, testKey, api.apiKey)
	assert.Equal(t, "http://flag:9090", api.baseURL)
}

func TestNewAPIClientWithCmd_MissingKey(t *testing.T) {
	useConfigDir(t, t.TempDir())

	_, err := NewAPIClientWithCmd(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agentkb auth login")
}

func TestReadText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.md")
	require.NoError(t, os.WriteFile(path, []byte("# FAQ\n\nShipping takes 2 days."), 0o600))

	got, err := readText("", path)
	require.NoError(t, err)
	assert.Contains(t, got, "Shipping takes 2 days.")

	got, err = readText("inline", "")
	require.NoError(t, err)
	assert.Equal(t, "inline", got)

	_, err = readText("inline", path)
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n b\t c", 20))
	assert.Equal(t, "abc...", preview("abcdef", 3))
}
