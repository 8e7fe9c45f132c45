package suno

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/handiism/suno-downloader/internal/auth"
	sunohttp "github.com/handiism/suno-downloader/internal/http"
	"github.com/handiism/suno-downloader/internal/model"
	"github.com/handiism/suno-downloader/internal/suno/dto"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

type staticCreds struct {
	forced int
}

func (s *staticCreds) Get(ctx context.Context, force bool) (auth.Credential, error) {
	if force {
		s.forced++
	}
	return auth.Credential{Token: "tok"}, nil
}

func newTestClient(srv *httptest.Server, sleeper *sleepRecorder) *Client {
	hc := sunohttp.NewClient(sunohttp.DefaultConfig(),
		sunohttp.WithHTTPClient(srv.Client()),
		sunohttp.WithSleep(sleeper.sleep),
	)
	cfg := DefaultCatalogConfig()
	cfg.PageDelay = 3 * time.Second
	cfg.RetryDelay = 10 * time.Second
	return NewClient(hc, Endpoints{API: srv.URL, CDN: srv.URL, Image: srv.URL}, cfg, nil)
}

func TestFetchAll_PaginatesAndSkips(t *testing.T) {
	pages := []dto.FeedResponse{
		{
			Clips: []dto.Clip{
				{ID: "a", Title: "One", Status: "complete"},
				{ID: "b", Title: "Two", Status: "trashed"},
				{ID: "c", Title: "Three", Status: "complete"},
			},
			HasMore:    true,
			NextCursor: "cur-2",
		},
		{
			Clips: []dto.Clip{
				{ID: "d", Title: "Four", Status: "trashed"},
				{ID: "e", Title: "Five", Status: "streaming", Metadata: &dto.ClipMetadata{Prompt: "la la", Tags: "synthwave"}},
			},
			HasMore: false,
		},
	}

	var (
		mu      sync.Mutex
		cursors []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/feed/v3" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req dto.FeedRequest
		json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		cursors = append(cursors, req.Cursor)
		mu.Unlock()

		idx := 0
		if req.Cursor == "cur-2" {
			idx = 1
		}
		json.NewEncoder(w).Encode(pages[idx])
	}))
	defer srv.Close()

	sleeper := &sleepRecorder{}
	client := newTestClient(srv, sleeper)

	var seen []PageInfo
	client.OnPage = func(p PageInfo) { seen = append(seen, p) }

	items, err := client.FetchAll(context.Background(), &staticCreds{})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "c" || ids[2] != "e" {
		t.Errorf("ids = %v, want [a c e]", ids)
	}
	if items[2].Lyrics != "la la" || items[2].Style != "synthwave" {
		t.Errorf("metadata not carried: %+v", items[2])
	}

	if len(sleeper.waits) != 1 || sleeper.waits[0] != 3*time.Second {
		t.Errorf("waits = %v, want exactly one page delay", sleeper.waits)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(cursors) != 2 || cursors[0] != "" || cursors[1] != "cur-2" {
		t.Errorf("cursors = %q", cursors)
	}
	if len(seen) != 2 || seen[1].Total != 3 {
		t.Errorf("OnPage calls = %+v", seen)
	}
}

func TestFetchAll_RetriesFailedPage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.WriteHeader(http.StatusUnauthorized)
		default:
			json.NewEncoder(w).Encode(dto.FeedResponse{Clips: []dto.Clip{{ID: "x"}}})
		}
	}))
	defer srv.Close()

	sleeper := &sleepRecorder{}
	creds := &staticCreds{}
	items, err := newTestClient(srv, sleeper).FetchAll(context.Background(), creds)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items, want 1", len(items))
	}
	if len(sleeper.waits) != 2 || sleeper.waits[0] != 10*time.Second {
		t.Errorf("waits = %v, want two retry delays", sleeper.waits)
	}
	if creds.forced != 1 {
		t.Errorf("forced refreshes = %d, want 1 after the 401", creds.forced)
	}
}

func TestFetchAll_StopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	hc := sunohttp.NewClient(sunohttp.DefaultConfig(),
		sunohttp.WithHTTPClient(srv.Client()),
		sunohttp.WithSleep(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)
	client := NewClient(hc, Endpoints{API: srv.URL}, DefaultCatalogConfig(), nil)

	if _, err := client.FetchAll(ctx, &staticCreds{}); err != context.Canceled {
		t.Errorf("FetchAll() error = %v, want context.Canceled", err)
	}
}

func TestTrigger(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"no content", http.StatusNoContent, true},
		{"server error", http.StatusInternalServerError, false},
		{"not found", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/gen/abc/convert_wav/" {
					t.Errorf("path = %q", r.URL.Path)
				}
				if r.Header.Get("Authorization") != "Bearer tok" {
					t.Errorf("missing bearer token")
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			got := newTestClient(srv, &sleepRecorder{}).Trigger(context.Background(), "tok", "abc")
			if got != tt.want {
				t.Errorf("Trigger() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEndpoints(t *testing.T) {
	var e Endpoints
	if got := e.AssetURL("abc", model.FormatWAV); got != "https://cdn1.suno.ai/abc.wav" {
		t.Errorf("AssetURL(wav) = %q", got)
	}
	if got := e.AssetURL("abc", model.FormatMP3); got != "https://cdn1.suno.ai/abc.mp3" {
		t.Errorf("AssetURL(mp3) = %q", got)
	}
	if got := e.ImageURL("abc"); got != "https://cdn2.suno.ai/image_large_abc.jpeg" {
		t.Errorf("ImageURL() = %q", got)
	}
	e.API = "http://localhost:8080/"
	if got := e.ConvertURL("abc"); got != "http://localhost:8080/api/gen/abc/convert_wav/" {
		t.Errorf("ConvertURL() = %q", got)
	}
}

func TestClip_ToItem(t *testing.T) {
	var clip dto.Clip
	raw := `{"id":"abc","title":"  Song ","status":"trashed","created_at":"2024-05-01T10:00:00.123Z","image_large_url":"https://img","metadata":{"prompt":"words","tags":"pop"}}`
	if err := json.Unmarshal([]byte(raw), &clip); err != nil {
		t.Fatal(err)
	}
	item := clip.ToItem()
	if item.Title != "Song" || item.Status != model.StatusTrashed || item.Lyrics != "words" || item.ImageURL != "https://img" {
		t.Errorf("ToItem() = %+v", item)
	}
	if item.CreatedAt.Year() != 2024 {
		t.Errorf("CreatedAt = %v", item.CreatedAt)
	}
}

func TestFetchAll_UnparseableCreatedAt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) > 3 {
			cancel()
		}
		w.Write([]byte(`{"clips":[
			{"id":"good","title":"One","status":"complete","created_at":"2024-05-12T18:56:17.270Z"},
			{"id":"odd","title":"Two","status":"complete","created_at":"2024-05-12T18:56:17+0000"},
			{"id":"num","title":"Three","status":"complete","created_at":1715540177}
		],"has_more":false}`))
	}))
	defer srv.Close()

	items, err := newTestClient(srv, &sleepRecorder{}).FetchAll(ctx, &staticCreds{})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("feed requests = %d, want 1", got)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].CreatedAt.Year() != 2024 {
		t.Errorf("good CreatedAt = %v", items[0].CreatedAt)
	}
	if !items[1].CreatedAt.IsZero() || !items[2].CreatedAt.IsZero() {
		t.Errorf("unparseable CreatedAt should be zero, got %v and %v", items[1].CreatedAt, items[2].CreatedAt)
	}
}

func TestFetchAll_DedupsAcrossPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dto.FeedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Cursor == "" {
			json.NewEncoder(w).Encode(dto.FeedResponse{
				Clips:      []dto.Clip{{ID: "a"}, {ID: "b"}},
				HasMore:    true,
				NextCursor: "next",
			})
			return
		}
		// "b" slid onto the second page while paginating
		json.NewEncoder(w).Encode(dto.FeedResponse{Clips: []dto.Clip{{ID: "b"}, {ID: "c"}}})
	}))
	defer srv.Close()

	items, err := newTestClient(srv, &sleepRecorder{}).FetchAll(context.Background(), &staticCreds{})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("ids = %v, want [a b c]", ids)
	}
}

func TestSunoTime_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw      string
		wantYear int
	}{
		{`"2024-05-12T18:56:17.270Z"`, 2024},
		{`"2024-05-12T18:56:17Z"`, 2024},
		{`"2024-05-12T18:56:17.123456"`, 2024},
		{`"2024-05-12 18:56:17"`, 2024},
		{`""`, 1},
		{`"2024-05-12T18:56:17+0000"`, 1},
		{`"yesterday"`, 1},
		{`12345`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var st dto.SunoTime
			if err := json.Unmarshal([]byte(tt.raw), &st); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if st.Year() != tt.wantYear {
				t.Errorf("Year() = %d, want %d", st.Year(), tt.wantYear)
			}
		})
	}
}
