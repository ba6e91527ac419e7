package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credchain-api/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *PinataClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewPinataClient(config.PinataConfig{
		JWT:        "test-jwt",
		GatewayURL: "https://gateway.example.com",
	}, nil)
	client.endpoint = server.URL
	return client
}

func TestPinataClient_Pin(t *testing.T) {
	var gotAuth string
	var gotMeta map[string]interface{}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "transcript.pdf", header.Filename)

		require.NoError(t, json.Unmarshal([]byte(r.FormValue("pinataMetadata")), &gotMeta))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"IpfsHash":  "bafybeigtest",
			"PinSize":   1024,
			"Timestamp": "2025-06-01T12:00:00Z",
		})
	})

	result, err := client.Pin(context.Background(), "transcript.pdf", []byte("%PDF-1.7 test"), map[string]string{
		"studentAddress": "0xabc",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-jwt", gotAuth)
	assert.Equal(t, "transcript.pdf", gotMeta["name"])
	keyvalues, ok := gotMeta["keyvalues"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "0xabc", keyvalues["studentAddress"])

	assert.Equal(t, "bafybeigtest", result.CID)
	assert.Equal(t, int64(1024), result.Size)
	assert.Equal(t, "https://gateway.example.com/ipfs/bafybeigtest", result.URL)
}

func TestPinataClient_PinRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Pin(context.Background(), "transcript.pdf", []byte("%PDF-1.7"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestPinataClient_PinEmptyCID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"PinSize": 10})
	})

	_, err := client.Pin(context.Background(), "transcript.pdf", []byte("%PDF-1.7"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty cid")
}

func TestGatewayURL(t *testing.T) {
	client := NewPinataClient(config.PinataConfig{GatewayURL: "https://gw.test"}, nil)
	assert.Equal(t, "https://gw.test/ipfs/bafyabc", client.GatewayURL("bafyabc"))
}

func TestDocumentHash(t *testing.T) {
	a := DocumentHash([]byte("%PDF-1.7 same bytes"))
	b := DocumentHash([]byte("%PDF-1.7 same bytes"))
	c := DocumentHash([]byte("%PDF-1.7 other bytes"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 66)
	assert.Equal(t, "0x", a[:2])
}
