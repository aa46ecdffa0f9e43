package updater

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_CheckForUpdate(t *testing.T) {
	testMatrix := []struct {
		name     string
		status   int
		body     string
		wantSize int64
		wantErr  bool
		wantName string
		wantVer  string
	}{
		{
			name:     "offer with payload size",
			status:   http.StatusOK,
			body:     "1000\n",
			wantSize: 1000,
			wantName: "fleetlink",
			wantVer:  "1.2.3",
		},
		{
			name:     "no content means no update",
			status:   http.StatusNoContent,
			wantSize: 0,
		},
		{
			name:     "unknown agent means no update",
			status:   http.StatusNotFound,
			wantSize: 0,
		},
		{
			name:    "server error fails the check",
			status:  http.StatusInternalServerError,
			wantErr: true,
		},
		{
			name:    "garbage body fails the check",
			status:  http.StatusOK,
			body:    "not-a-number",
			wantErr: true,
		},
	}

	for _, c := range testMatrix {
		t.Run(c.name, func(t *testing.T) {
			var gotPath, gotName, gotVersion string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotName = r.URL.Query().Get("name")
				gotVersion = r.URL.Query().Get("version")
				w.WriteHeader(c.status)
				_, _ = w.Write([]byte(c.body))
			}))
			defer srv.Close()

			client := NewHTTPClient(srv.URL)
			size, err := client.CheckForUpdate(context.Background(), ServiceIdentity{Name: "fleetlink", Version: "1.2.3"})

			if c.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.wantSize, size)
			assert.Equal(t, "/check", gotPath)
			if c.wantName != "" {
				assert.Equal(t, c.wantName, gotName)
				assert.Equal(t, c.wantVer, gotVersion)
			}
		})
	}
}

func TestHTTPClient_DownloadChunk(t *testing.T) {
	payload := testPayload(100)

	var gotPath, gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(payload[40:])
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	chunk, err := client.DownloadChunk(context.Background(), "fleetlink", 40)
	require.NoError(t, err)

	assert.Equal(t, "/download/fleetlink", gotPath)
	assert.Equal(t, payload[40:], chunk)
	assert.Equal(t, "bytes=40-524327", gotRange, "chunk request must address the exact offset")
}

func TestHTTPClient_DownloadChunkRangeIgnored(t *testing.T) {
	payload := testPayload(100)

	// a server that ignores the range header and replays the full
	// payload with a 200 must not be mistaken for a valid chunk
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)

	chunk, err := client.DownloadChunk(context.Background(), "fleetlink", 0)
	require.NoError(t, err, "a 200 for the first chunk is acceptable")
	assert.Equal(t, payload, chunk)

	_, err = client.DownloadChunk(context.Background(), "fleetlink", 40)
	require.Error(t, err)
}

func TestHTTPClient_DownloadChunkServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	_, err := client.DownloadChunk(context.Background(), "fleetlink", 0)
	require.Error(t, err)
}
