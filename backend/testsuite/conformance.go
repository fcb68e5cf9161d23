package testsuite

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tidalfs/objstore"
)

// RunStoreConformance exercises every objstore.Store operation against srv and fails the test on
// any behavior that differs from what the interface documents. The store must be rooted on srv's
// bucket; a store prefix is fine. Each stage cleans up the objects it created.
func RunStoreConformance(t *testing.T, srv *Server, store objstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		body := bytes.Repeat([]byte("conformance "), 64)
		require.NoError(t, store.Put(ctx, "round/trip.bin", bytes.NewReader(body), int64(len(body))))

		var buf bytes.Buffer
		info, err := store.Get(ctx, "round/trip.bin", &buf)
		require.NoError(t, err)
		require.Equal(t, body, buf.Bytes())
		require.NotNil(t, info)
		require.Equal(t, int64(len(body)), info.Size)
		require.NotEmpty(t, info.ETag)

		_, err = store.Get(ctx, "round/absent.bin", io.Discard)
		require.Error(t, err, "a missing object is a Get error")

		require.NoError(t, store.Delete(ctx, "round/trip.bin"))
	})

	t.Run("FileRoundTrip", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "upload.txt")
		require.NoError(t, os.WriteFile(src, []byte("file round trip"), 0o600))
		require.NoError(t, store.PutFile(ctx, "files/upload.txt", src))

		dst := filepath.Join(dir, "download.txt")
		info, err := store.GetFile(ctx, "files/upload.txt", dst)
		require.NoError(t, err)
		require.NotNil(t, info)
		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		require.Equal(t, "file round trip", string(data))

		missing := filepath.Join(dir, "missing.txt")
		_, err = store.GetFile(ctx, "files/absent.txt", missing)
		require.Error(t, err)
		_, statErr := os.Stat(missing)
		require.True(t, os.IsNotExist(statErr), "a failed download must not leave a partial file")

		require.NoError(t, store.Delete(ctx, "files/upload.txt"))
	})

	t.Run("StatAndExists", func(t *testing.T) {
		info, err := store.Stat(ctx, "stat/absent.txt")
		require.NoError(t, err, "a missing object is not a Stat error")
		require.Nil(t, info)

		found, err := store.Exists(ctx, "stat/absent.txt")
		require.NoError(t, err)
		require.False(t, found)

		require.NoError(t, store.Put(ctx, "stat/present.txt", strings.NewReader("here"), 4))
		info, err = store.Stat(ctx, "stat/present.txt")
		require.NoError(t, err)
		require.NotNil(t, info)
		require.Equal(t, int64(4), info.Size)
		require.NotEmpty(t, info.ETag)
		require.False(t, info.LastModified.IsZero())

		found, err = store.Exists(ctx, "stat/present.txt")
		require.NoError(t, err)
		require.True(t, found)

		require.NoError(t, store.Delete(ctx, "stat/present.txt"))
	})

	t.Run("List", func(t *testing.T) {
		names := []string{"list/a.txt", "list/b/c.txt", "list/b/d.txt", "other/e.txt"}
		for _, name := range names {
			require.NoError(t, store.Put(ctx, name, strings.NewReader(name), int64(len(name))))
		}

		infos, err := store.List(ctx, "list/")
		require.NoError(t, err)
		require.Equal(t, []string{"list/a.txt", "list/b/c.txt", "list/b/d.txt"}, keysOf(infos),
			"keys come back relative to the store root, in service order")
		require.Equal(t, int64(len("list/a.txt")), infos[0].Size)
		require.False(t, infos[0].LastModified.IsZero())

		infos, err = store.List(ctx, "list/b/")
		require.NoError(t, err)
		require.Equal(t, []string{"list/b/c.txt", "list/b/d.txt"}, keysOf(infos))

		infos, err = store.List(ctx, "nothing/here/")
		require.NoError(t, err)
		require.Empty(t, infos)

		for _, name := range names {
			require.NoError(t, store.Delete(ctx, name))
		}
	})

	t.Run("ListPagination", func(t *testing.T) {
		srv.SetPageSize(2)
		defer srv.SetPageSize(1000)

		var names []string
		for i := 0; i < 7; i++ {
			name := "page/" + strconv.Itoa(i) + ".txt"
			require.NoError(t, store.Put(ctx, name, strings.NewReader(name), int64(len(name))))
			names = append(names, name)
		}

		infos, err := store.List(ctx, "page/")
		require.NoError(t, err)
		require.Equal(t, names, keysOf(infos), "truncated pages stitch into one complete listing")

		for _, name := range names {
			require.NoError(t, store.Delete(ctx, name))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "del/gone.txt", strings.NewReader("x"), 1))
		require.NoError(t, store.Delete(ctx, "del/gone.txt"))

		found, err := store.Exists(ctx, "del/gone.txt")
		require.NoError(t, err)
		require.False(t, found)

		require.NoError(t, store.Delete(ctx, "del/gone.txt"), "deleting an absent object is idempotent")
	})

	t.Run("SignedURL", func(t *testing.T) {
		content := "signed content"
		require.NoError(t, store.Put(ctx, "signed/obj.txt", strings.NewReader(content), int64(len(content))))

		signed, err := store.SignedURL("signed/obj.txt", time.Minute)
		require.NoError(t, err)

		u, err := url.Parse(signed)
		require.NoError(t, err)
		require.NotEmpty(t, u.Query().Get("Signature"))
		require.NotEmpty(t, u.Query().Get("Expires"))

		resp, err := http.Get(signed)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode, "the signed URL works without further authentication")
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, content, string(data))

		require.NoError(t, store.Delete(ctx, "signed/obj.txt"))
	})

	t.Run("Probe", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			name := "probe/" + strconv.Itoa(i) + ".txt"
			require.NoError(t, store.Put(ctx, name, strings.NewReader("p"), 1))
		}

		result, err := store.Probe(ctx)
		require.NoError(t, err)
		require.NotNil(t, result)
		require.True(t, result.Reachable)
		require.True(t, result.Authenticated)
		require.True(t, result.OK())
		require.Equal(t, int64(3), result.PendingCount)
		require.False(t, result.WriteChecked, "the Store probe never writes")
		require.NotEmpty(t, result.Endpoint)

		for i := 0; i < 3; i++ {
			require.NoError(t, store.Delete(ctx, "probe/"+strconv.Itoa(i)+".txt"))
		}
	})

	t.Run("Identity", func(t *testing.T) {
		require.NotEmpty(t, store.Scheme())
		require.True(t, strings.HasPrefix(store.String(), store.Scheme()+"://"),
			"String identifies the store as scheme://bucket[/prefix]")
	})
}

func keysOf(infos []objstore.ObjectInfo) []string {
	keys := make([]string, len(infos))
	for i, info := range infos {
		keys[i] = info.Key
	}
	return keys
}
