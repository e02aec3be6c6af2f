package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, endpoint string) ObjectStore {
	t.Helper()
	client, err := NewS3Client(context.Background(), Config{
		Endpoint:  endpoint,
		Region:    "us-east-1",
		AccessKey: "test-access",
		SecretKey: "test-secret",
	})
	require.NoError(t, err)
	return NewS3Store(client, "media-bucket", zerolog.Nop())
}

func TestPresignURLs(t *testing.T) {
	store := newTestStore(t, "http://localhost:9000")

	put, err := store.PresignPut(context.Background(), "media/u1/abc.mp4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(put, "http://localhost:9000/media-bucket/media/u1/abc.mp4?"), put)
	assert.Contains(t, put, "X-Amz-Signature=")
	assert.Contains(t, put, "X-Amz-Expires=900")

	get, err := store.PresignGet(context.Background(), "media/u1/abc.mp4")
	require.NoError(t, err)
	assert.Contains(t, get, "/media-bucket/media/u1/abc.mp4?")
}

func TestStat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path == "/media-bucket/media/u1/present.png" {
			w.Header().Set("Content-Length", "2048")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := newTestStore(t, srv.URL)

	size, ok, err := store.Stat(context.Background(), "media/u1/present.png")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2048), size)

	_, ok, err = store.Stat(context.Background(), "media/u1/absent.png")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMediaKey(t *testing.T) {
	key := MediaKey("u1", "My Clip.MP4")
	assert.True(t, strings.HasPrefix(key, "media/u1/"))
	assert.True(t, strings.HasSuffix(key, ".mp4"))
	assert.True(t, OwnsKey("u1", key))
	assert.False(t, OwnsKey("u2", key))
	assert.False(t, OwnsKey("u1", "media/u1/../u2/x.png"))

	assert.NotEqual(t, MediaKey("u1", "a.png"), MediaKey("u1", "a.png"))
}
