package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"booru-bot/internal/booru"
)

func newTestDownloader(t *testing.T, maxSize int64, handler http.Handler) (*Downloader, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	d := New(Opts{
		UserAgent:   "test-agent",
		Timeout:     5 * time.Second,
		MaxFileSize: maxSize,
	}, zap.NewNop())
	return d, srv
}

func mediaHandler(files map[string][]byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	})
}

func TestFetchPrefersPreview(t *testing.T) {
	t.Parallel()

	preview := bytes.Repeat([]byte{0xAA}, 200<<10) // 200KB, well under the limit
	d, srv := newTestDownloader(t, 10<<20, mediaHandler(map[string][]byte{
		"/preview.jpg": preview,
		"/full.png":    bytes.Repeat([]byte{0xBB}, 400<<10),
	}))

	blobs, err := d.Fetch(context.Background(), []booru.Source{
		{PreviewURL: srv.URL + "/preview.jpg", FileURL: srv.URL + "/full.png"},
	})
	require.NoError(t, err)
	require.Len(t, blobs, 1)

	data, err := blobs[0].Bytes()
	require.NoError(t, err)
	assert.Equal(t, preview, data)
}

func TestFetchFallsBackToFullOnTransportFailure(t *testing.T) {
	t.Parallel()

	full := []byte("full image bytes")
	d, srv := newTestDownloader(t, 10<<20, mediaHandler(map[string][]byte{
		"/full.png": full,
	}))

	blobs, err := d.Fetch(context.Background(), []booru.Source{
		{PreviewURL: srv.URL + "/missing.jpg", FileURL: srv.URL + "/full.png"},
	})
	require.NoError(t, err)
	require.Len(t, blobs, 1)

	data, err := blobs[0].Bytes()
	require.NoError(t, err)
	assert.Equal(t, full, data)
}

func TestFetchDiscardsOversizedItem(t *testing.T) {
	t.Parallel()

	d, srv := newTestDownloader(t, 1024, mediaHandler(map[string][]byte{
		"/preview.jpg": bytes.Repeat([]byte{0x01}, 2048),
		"/full.png":    bytes.Repeat([]byte{0x02}, 4096),
	}))

	_, err := d.Fetch(context.Background(), []booru.Source{
		{PreviewURL: srv.URL + "/preview.jpg", FileURL: srv.URL + "/full.png"},
	})
	assert.ErrorIs(t, err, ErrNoUsableMedia)
}

func TestFetchSkipsFailuresAndKeepsOrder(t *testing.T) {
	t.Parallel()

	first := []byte("first")
	third := []byte("third")
	d, srv := newTestDownloader(t, 10<<20, mediaHandler(map[string][]byte{
		"/a.jpg": first,
		"/c.jpg": third,
	}))

	blobs, err := d.Fetch(context.Background(), []booru.Source{
		{PreviewURL: srv.URL + "/a.jpg"},
		{PreviewURL: srv.URL + "/b.jpg"}, // 404, skipped
		{PreviewURL: srv.URL + "/c.jpg"},
	})
	require.NoError(t, err)
	require.Len(t, blobs, 2)

	a, err := blobs[0].Bytes()
	require.NoError(t, err)
	c, err := blobs[1].Bytes()
	require.NoError(t, err)
	assert.Equal(t, first, a)
	assert.Equal(t, third, c)
}

func TestFetchAllFailuresIsNoUsableMedia(t *testing.T) {
	t.Parallel()

	d, srv := newTestDownloader(t, 10<<20, mediaHandler(nil))

	_, err := d.Fetch(context.Background(), []booru.Source{
		{PreviewURL: srv.URL + "/gone.jpg", FileURL: srv.URL + "/gone.png"},
	})
	assert.ErrorIs(t, err, ErrNoUsableMedia)
}

func TestFetchEmptySourceList(t *testing.T) {
	t.Parallel()

	d, _ := newTestDownloader(t, 10<<20, mediaHandler(nil))

	_, err := d.Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoUsableMedia)
}

func TestBlobRoundTrip(t *testing.T) {
	t.Parallel()

	b := NewBlob([]byte{0x00, 0xFF, 0x10})
	assert.True(t, len(b.Inline) > len(inlinePrefix))

	data, err := b.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xFF, 0x10}, data)

	_, err = Blob{Inline: "not-inline"}.Bytes()
	assert.Error(t, err)
}
