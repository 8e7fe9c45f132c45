package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sunohttp "github.com/handiism/suno-downloader/internal/http"
	"github.com/handiism/suno-downloader/internal/model"
	"github.com/handiism/suno-downloader/internal/suno"
)

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

// cdn serves HEAD responses from a script and counts requests by method.
type cdn struct {
	mu     sync.Mutex
	probes []int
	heads  int
	gets   map[string]int
	body   string
}

func (c *cdn) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gets == nil {
		c.gets = map[string]int{}
	}
	switch r.Method {
	case http.MethodHead:
		status := http.StatusOK
		if c.heads < len(c.probes) {
			status = c.probes[c.heads]
		}
		c.heads++
		w.WriteHeader(status)
	case http.MethodGet:
		c.gets[r.URL.Path]++
		if strings.HasPrefix(r.URL.Path, "/image_large_") {
			w.Write([]byte("jpeg-bytes"))
			return
		}
		w.Write([]byte(c.body))
	}
}

func (c *cdn) stats() (int, map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gets := make(map[string]int, len(c.gets))
	for k, v := range c.gets {
		gets[k] = v
	}
	return c.heads, gets
}

func newTestExecutor(t *testing.T, srv *httptest.Server, cfg PollerConfig, sleeper *sleepRecorder) *Executor {
	t.Helper()
	hc := sunohttp.NewClient(sunohttp.DefaultConfig(),
		sunohttp.WithHTTPClient(srv.Client()),
		sunohttp.WithSleep(sleeper.sleep),
	)
	return NewExecutor(hc, suno.Endpoints{API: srv.URL, CDN: srv.URL, Image: srv.URL}, cfg, nil, nil)
}

func testPollerConfig(t *testing.T) PollerConfig {
	cfg := DefaultPollerConfig()
	cfg.OutputDir = t.TempDir()
	cfg.ReadyDelay = 6 * time.Second
	cfg.RetryDelay = 5 * time.Second
	cfg.MaxAttempts = 5
	return cfg
}

func TestExecutor_ReadyOnThirdProbe(t *testing.T) {
	c := &cdn{probes: []int{404, 404, 200}, body: "RIFF-data"}
	srv := httptest.NewServer(c)
	defer srv.Close()

	sleeper := &sleepRecorder{}
	cfg := testPollerConfig(t)
	exec := newTestExecutor(t, srv, cfg, sleeper)

	out := exec.Execute(context.Background(), model.Item{ID: "xyz123", Title: "A/B:C*D"})
	if !out.Success {
		t.Fatalf("Execute() failed: %v", out.Err)
	}
	if heads, _ := c.stats(); out.Probes != 3 || heads != 3 {
		t.Errorf("probes = %d (server saw %d), want 3", out.Probes, heads)
	}
	if out.State != StateComplete {
		t.Errorf("State = %v, want complete", out.State)
	}

	want := []time.Duration{6 * time.Second, 5 * time.Second, 5 * time.Second}
	if len(sleeper.waits) != len(want) {
		t.Fatalf("waits = %v, want %v", sleeper.waits, want)
	}
	for i := range want {
		if sleeper.waits[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, sleeper.waits[i], want[i])
		}
	}

	if got := filepath.Base(out.Path); got != "A_B_C_D - xyz123.wav" {
		t.Errorf("file name = %q", got)
	}
	data, err := os.ReadFile(out.Path)
	if err != nil || string(data) != "RIFF-data" {
		t.Errorf("file content = %q, %v", data, err)
	}
	if out.BytesWritten != int64(len("RIFF-data")) {
		t.Errorf("BytesWritten = %d", out.BytesWritten)
	}
}

func TestExecutor_ExhaustedNeverDownloads(t *testing.T) {
	c := &cdn{probes: []int{404, 404, 404, 404, 404}}
	srv := httptest.NewServer(c)
	defer srv.Close()

	sleeper := &sleepRecorder{}
	out := newTestExecutor(t, srv, testPollerConfig(t), sleeper).
		Execute(context.Background(), model.Item{ID: "abc"})

	if out.Success {
		t.Fatal("expected failure")
	}
	if !errors.Is(out.Err, ErrAssetNotReady) {
		t.Errorf("Err = %v, want ErrAssetNotReady", out.Err)
	}
	if out.State != StateExhausted {
		t.Errorf("State = %v, want exhausted", out.State)
	}
	heads, gets := c.stats()
	if heads != 5 {
		t.Errorf("probes = %d, want 5", heads)
	}
	if len(gets) != 0 {
		t.Errorf("GET issued for an unready asset: %v", gets)
	}
	// initial wait plus one between each pair of probes
	if len(sleeper.waits) != 5 {
		t.Errorf("waits = %v, want 5", sleeper.waits)
	}
}

func TestExecutor_MP3SkipsInitialWait(t *testing.T) {
	c := &cdn{body: "ID3"}
	srv := httptest.NewServer(c)
	defer srv.Close()

	sleeper := &sleepRecorder{}
	cfg := testPollerConfig(t)
	cfg.Format = model.FormatMP3
	cfg.Naming = model.NamingConfig{IncludeID: false}

	out := newTestExecutor(t, srv, cfg, sleeper).Execute(context.Background(), model.Item{ID: "abc", Title: "Song"})
	if !out.Success {
		t.Fatalf("Execute() failed: %v", out.Err)
	}
	if len(sleeper.waits) != 0 {
		t.Errorf("waits = %v, want none", sleeper.waits)
	}
	if _, gets := c.stats(); gets["/abc.mp3"] != 1 {
		t.Errorf("gets = %v", gets)
	}
	if filepath.Base(out.Path) != "Song.mp3" {
		t.Errorf("file name = %q", filepath.Base(out.Path))
	}
}

func TestExecutor_Companions(t *testing.T) {
	c := &cdn{body: "RIFF"}
	srv := httptest.NewServer(c)
	defer srv.Close()

	cfg := testPollerConfig(t)
	cfg.IncludeCover = true
	cfg.IncludeLyrics = true
	cfg.IncludeStyle = true

	item := model.Item{ID: "abc", Title: "Song", Lyrics: "la la", Style: "pop"}
	out := newTestExecutor(t, srv, cfg, &sleepRecorder{}).Execute(context.Background(), item)
	if !out.Success {
		t.Fatalf("Execute() failed: %v", out.Err)
	}

	base := filepath.Join(cfg.OutputDir, "Song - abc")
	cover, err := os.ReadFile(base + ".jpeg")
	if err != nil || string(cover) != "jpeg-bytes" {
		t.Errorf("cover = %q, %v", cover, err)
	}
	if _, err := os.Stat(base + ".jpg"); !os.IsNotExist(err) {
		t.Errorf("cover should only be written as .jpeg, stat .jpg: %v", err)
	}
	sheet, err := os.ReadFile(base + ".txt")
	if err != nil || !strings.Contains(string(sheet), "Lyrics:\nla la") {
		t.Errorf("sidecar = %q, %v", sheet, err)
	}
}

func TestExecutor_CoverFailureDoesNotFailItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/image_large_") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	cfg := testPollerConfig(t)
	cfg.IncludeCover = true

	var events []ProgressEvent
	hc := sunohttp.NewClient(sunohttp.DefaultConfig(),
		sunohttp.WithHTTPClient(srv.Client()),
		sunohttp.WithSleep((&sleepRecorder{}).sleep),
	)
	exec := NewExecutor(hc, suno.Endpoints{CDN: srv.URL, Image: srv.URL}, cfg, nil, func(e ProgressEvent) {
		events = append(events, e)
	})

	out := exec.Execute(context.Background(), model.Item{ID: "abc"})
	if !out.Success {
		t.Fatalf("Execute() failed: %v", out.Err)
	}

	var warned bool
	for _, e := range events {
		if e.Level == LevelWarning && strings.Contains(e.Message, "cover art") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("expected a cover art warning, got %+v", events)
	}
}

func TestExecutor_ContextCancelled(t *testing.T) {
	c := &cdn{probes: []int{404, 404, 404}}
	srv := httptest.NewServer(c)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	hc := sunohttp.NewClient(sunohttp.DefaultConfig(),
		sunohttp.WithHTTPClient(srv.Client()),
		sunohttp.WithSleep(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)
	out := NewExecutor(hc, suno.Endpoints{CDN: srv.URL}, testPollerConfig(t), nil, nil).
		Execute(ctx, model.Item{ID: "abc"})

	if !errors.Is(out.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", out.Err)
	}
	if heads, _ := c.stats(); heads != 0 {
		t.Errorf("probed %d times after cancel", heads)
	}
}
