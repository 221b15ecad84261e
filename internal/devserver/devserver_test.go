package devserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"c3addon-builder/internal/ace"
	"c3addon-builder/internal/addon"
	"c3addon-builder/internal/config"
	"c3addon-builder/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBuilder struct {
	n      atomic.Int32
	builds chan int32
}

func (f *fakeBuilder) Build(context.Context) (*pipeline.Result, error) {
	n := f.n.Add(1)
	defer func() { f.builds <- n }()
	return &pipeline.Result{
		ID:    fmt.Sprintf("b%d", n),
		Addon: &addon.Config{ID: "Jumper", Name: "Jumper", Version: "1.0.0.0"},
		Model: ace.NewModel(),
	}, nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Root = t.TempDir()
	cfg.Host = "http://127.0.0.1"
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Root, "export"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Root, "export", "addon.json"), []byte(`{"id":"Jumper"}`), 0o644))
	return &cfg
}

func TestListenFallsBackToNextPort(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	ln, got, err := Listen("127.0.0.1", port, 10)
	if err != nil {
		t.Skipf("no free neighbour port: %v", err)
	}
	defer ln.Close()
	assert.Greater(t, got, port)

	_, _, err = Listen("127.0.0.1", port, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no free port")
}

func TestHandlerServesExportWithCORS(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(Options{Config: cfg, Builder: &fakeBuilder{builds: make(chan int32, 1)}})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/addon.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"id":"Jumper"}`, string(body))

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/addon.json", nil)
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHubDeliversBuildEvents(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	hub.Broadcast(Event{Type: "build", Build: "b1", Records: 3})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "build", ev.Type)
	assert.Equal(t, "b1", ev.Build)
	assert.Equal(t, 3, ev.Records)
}

func TestEventForFailure(t *testing.T) {
	ev := eventFor(nil, errors.New("boom"))
	assert.Equal(t, Event{Type: "error", Message: "boom"}, ev)
}

func TestBannerShowsImportURL(t *testing.T) {
	out := Banner(BannerInfo{Addon: "Jumper", Version: "1.0.0.0", BaseURL: "http://localhost:3000/"})
	assert.Contains(t, out, "http://localhost:3000/addon.json")
	assert.Contains(t, out, "Jumper 1.0.0.0")
}

func waitBuild(t *testing.T, ch <-chan int32, want int32) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-ch:
			if n >= want {
				return
			}
		case <-deadline:
			t.Fatalf("build %d did not happen", want)
		}
	}
}

func TestRunRebuildsOnSourceChange(t *testing.T) {
	cfg := testConfig(t)
	free, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg.Port = free.Addr().(*net.TCPAddr).Port
	require.NoError(t, free.Close())

	fb := &fakeBuilder{builds: make(chan int32, 8)}
	out := &lockedBuffer{}
	bases := make(chan string, 1)
	s, err := New(Options{
		Config:   cfg,
		Builder:  fb,
		Out:      out,
		Debounce: 20 * time.Millisecond,
		OnListen: func(base string) { bases <- base },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	base := <-bases
	waitBuild(t, fb.builds, 1)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(base + "/addon.json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Root, "src", "instance.ts"), []byte("export {};\n"), 0o644))
	waitBuild(t, fb.builds, 2)

	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, out.String(), base+"/addon.json")
	require.NotNil(t, s.Last())
}

func TestWatcherSkipsIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"ui", "generated/deep", "node_modules/pkg"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("generated/\n"), 0o644))

	wt, err := NewWatcher(root, 0, nil)
	require.NoError(t, err)
	defer wt.w.Close()

	var rels []string
	for _, p := range wt.w.WatchList() {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		rels = append(rels, filepath.ToSlash(rel))
	}
	assert.ElementsMatch(t, []string{".", "ui"}, rels)
}
