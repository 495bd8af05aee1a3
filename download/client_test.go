package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toxref_brick/config"
)

type dataset struct {
	listing    string
	payload    string
	fileHits   atomic.Int32
	lastAPIKey atomic.Value
}

func (d *dataset) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/datasets/files", func(w http.ResponseWriter, r *http.Request) {
		d.lastAPIKey.Store(r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(d.listing))
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		d.fileHits.Add(1)
		if r.URL.Path != "/files/abc123" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(d.payload))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	cfg := config.Default().Download
	cfg.ListingURL = srv.URL + "/datasets/files"
	cfg.FilesURL = srv.URL + "/files"
	cfg.ChunkSize = 4
	c, err := NewClient(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	c.Progress = &bytes.Buffer{}
	return c
}

func TestFetch(t *testing.T) {
	d := &dataset{
		listing: `[{"id":"zzz","filename":"README.md"},{"id":"abc123","filename":"toxrefdb_3_0.dump"}]`,
		payload: strings.Repeat("pg_dump-", 100),
	}
	srv := d.server(t)
	c := newTestClient(t, srv)

	dest := filepath.Join(t.TempDir(), "download", "toxrefdb.dump")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))
	require.NoError(t, os.WriteFile(dest, []byte("stale"), 0644))

	path, err := c.Fetch(context.Background(), dest)
	require.NoError(t, err)
	assert.Equal(t, dest, path)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, d.payload, string(data))

	_, err = os.Stat(dest + ".part")
	assert.True(t, os.IsNotExist(err))
	assert.EqualValues(t, 1, d.fileHits.Load())
}

func TestFetchSendsAPIKey(t *testing.T) {
	d := &dataset{listing: `[{"id":"abc123","filename":"toxrefdb.dump"}]`, payload: "x"}
	srv := d.server(t)
	c := newTestClient(t, srv)
	c.cfg.APIKey = "secret"

	_, err := c.Fetch(context.Background(), filepath.Join(t.TempDir(), "out.dump"))
	require.NoError(t, err)
	assert.Equal(t, "secret", d.lastAPIKey.Load())
}

func TestFetchMultipleMatches(t *testing.T) {
	d := &dataset{
		listing: `[{"id":"abc123","filename":"toxrefdb_3_0.dump"},{"id":"def456","filename":"toxrefdb_2_1.dump"}]`,
		payload: "x",
	}
	srv := d.server(t)
	c := newTestClient(t, srv)

	dest := filepath.Join(t.TempDir(), "toxrefdb.dump")
	_, err := c.Fetch(context.Background(), dest)
	require.ErrorIs(t, err, ErrMultipleMatches)
	assert.Contains(t, err.Error(), "toxrefdb_2_1.dump")

	// no file transfer was started
	assert.Zero(t, d.fileHits.Load())
	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestFetchNoMatch(t *testing.T) {
	d := &dataset{listing: `[{"id":"abc123","filename":"toxrefdb.sql"}]`}
	srv := d.server(t)
	c := newTestClient(t, srv)

	_, err := c.Fetch(context.Background(), filepath.Join(t.TempDir(), "toxrefdb.dump"))
	require.ErrorIs(t, err, ErrNoMatch)
	assert.Zero(t, d.fileHits.Load())
}

func TestSelectIsAnchoredAtStart(t *testing.T) {
	c, err := NewClient(config.Default().Download, zap.NewNop().Sugar())
	require.NoError(t, err)

	f, err := c.Select([]File{
		{ID: "1", Filename: "old_toxrefdb.dump"},
		{ID: "2", Filename: "toxrefdb_v3.dump.gz"},
	})
	require.NoError(t, err)
	assert.Equal(t, "2", f.ID)
}

func TestListErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := config.Default().Download
	cfg.ListingURL = srv.URL
	c, err := NewClient(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)

	_, err = c.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestFetchFileErrorStatus(t *testing.T) {
	d := &dataset{listing: `[{"id":"missing","filename":"toxrefdb.dump"}]`}
	srv := d.server(t)
	c := newTestClient(t, srv)

	dest := filepath.Join(t.TempDir(), "toxrefdb.dump")
	_, err := c.Fetch(context.Background(), dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	_, err = os.Stat(dest + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestNewClientBadPattern(t *testing.T) {
	cfg := config.Default().Download
	cfg.Pattern = "("
	_, err := NewClient(cfg, zap.NewNop().Sugar())
	assert.Error(t, err)
}
