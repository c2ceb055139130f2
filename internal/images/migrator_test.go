package images

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	objects   map[string][]byte
	uploadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) EnsureBucket(ctx context.Context) error { return nil }

func (f *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.objects[key] = data
	return f.URL(key), nil
}

func (f *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) URL(key string) string { return "https://media.test/" + key }

func TestMigrateOne_UploadsUnderDeterministicKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		assert.Equal(t, "https://www.example.com", r.Header.Get("Referer"))
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpegdata"))
	}))
	defer srv.Close()

	store := newFakeStore()
	m := NewMigrator(store, WithReferer("https://www.example.com"))

	url, err := m.MigrateOne(context.Background(), srv.URL+"/photos/venue.jpg", "establishments", 42, "original", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://media.test/establishments/42/original/image-0.jpg", url)
	assert.Equal(t, []byte("jpegdata"), store.objects["establishments/42/original/image-0.jpg"])
}

func TestMigrateOne_ExistingKeySkipsDownload(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
	}))
	defer srv.Close()

	store := newFakeStore()
	store.objects["partners/7/original/image-2.jpg"] = []byte("already there")
	m := NewMigrator(store)

	url, err := m.MigrateOne(context.Background(), srv.URL+"/p.jpg", "partners", 7, "original", 2)
	require.NoError(t, err)
	assert.Equal(t, "https://media.test/partners/7/original/image-2.jpg", url)
	assert.Equal(t, int32(0), gets.Load())
}

func TestMigrateOne_DownloadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	m := NewMigrator(newFakeStore())
	_, err := m.MigrateOne(context.Background(), srv.URL+"/p.jpg", "partners", 7, "original", 0)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestMigrateOne_ContentTypeOverridesURLExtension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		w.Write([]byte("webpdata"))
	}))
	defer srv.Close()

	store := newFakeStore()
	m := NewMigrator(store)

	url, err := m.MigrateOne(context.Background(), srv.URL+"/photo.png", "establishments", 1, "original", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://media.test/establishments/1/original/image-0.webp", url)
	_, hasPNG := store.objects["establishments/1/original/image-0.png"]
	assert.False(t, hasPNG)
}

func TestMigrateOne_UploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	store := newFakeStore()
	store.uploadErr = errors.New("bucket unavailable")
	m := NewMigrator(store)

	_, err := m.MigrateOne(context.Background(), srv.URL+"/p.jpg", "partners", 1, "original", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "images: upload")
}

func TestMigrateEntity_PartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m := NewMigrator(newFakeStore())
	uploaded, err := m.MigrateEntity(context.Background(), "establishments", 5, "original",
		[]string{srv.URL + "/a.jpg", srv.URL + "/bad.jpg", srv.URL + "/c.jpg"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 images failed")
	assert.Equal(t, []string{
		"https://media.test/establishments/5/original/image-0.jpg",
		"https://media.test/establishments/5/original/image-2.jpg",
	}, uploaded)
}

func TestMigrateEntity_AllSucceed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("pngdata"))
	}))
	defer srv.Close()

	m := NewMigrator(newFakeStore())
	uploaded, err := m.MigrateEntity(context.Background(), "partners", 9, "original",
		[]string{srv.URL + "/1.png", srv.URL + "/2.png"})
	require.NoError(t, err)
	assert.Len(t, uploaded, 2)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "establishments/42/original/image-3.webp", Key("establishments", 42, "original", 3, "webp"))
}

func TestExtFromURL(t *testing.T) {
	assert.Equal(t, "jpg", extFromURL("https://cdn.example.com/a/b/photo.jpg?w=800"))
	assert.Equal(t, "png", extFromURL("https://cdn.example.com/logo.PNG"))
	assert.Equal(t, "jpg", extFromURL("https://cdn.example.com/no-extension"))
	assert.Equal(t, "jpg", extFromURL("https://cdn.example.com/script.php"))
}

func TestExtFromContentType(t *testing.T) {
	assert.Equal(t, "jpg", extFromContentType("image/jpeg"))
	assert.Equal(t, "webp", extFromContentType("image/webp; charset=binary"))
	assert.Equal(t, "", extFromContentType("text/html"))
	assert.Equal(t, "", extFromContentType(""))
}
