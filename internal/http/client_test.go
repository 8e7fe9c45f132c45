package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

// flakyTransport fails the first n round trips with a transport error.
type flakyTransport struct {
	failures int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return nil, errors.New("connection reset by peer")
	}
	return f.next.RoundTrip(req)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.NetworkBackoff = 10 * time.Second
	cfg.RateLimitBackoff = 20 * time.Second
	return cfg
}

func TestClient_Do_RetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"page":1}` {
			t.Errorf("body = %q, want re-sent JSON", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	client := NewClient(testConfig(), WithSleep(rec.sleep))

	resp, err := client.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Token:  "tok",
		JSON:   map[string]int{"page": 1},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if calls != 3 {
		t.Errorf("server saw %d calls, want 3", calls)
	}
	if len(rec.waits) != 2 || rec.waits[0] != 20*time.Second {
		t.Errorf("waits = %v, want two 20s rate-limit backoffs", rec.waits)
	}
}

func TestClient_Do_RetriesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	hc := &http.Client{Transport: &flakyTransport{failures: 3, next: http.DefaultTransport}}
	client := NewClient(testConfig(), WithHTTPClient(hc), WithSleep(rec.sleep))

	resp, err := client.Do(context.Background(), Request{Method: http.MethodPost, URL: srv.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if len(rec.waits) != 3 || rec.waits[2] != 10*time.Second {
		t.Errorf("waits = %v, want three 10s network backoffs", rec.waits)
	}
}

func TestClient_Do_SurfacesOtherStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	client := NewClient(testConfig(), WithSleep(rec.sleep))

	status, _, err := client.Head(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
	if len(rec.waits) != 0 {
		t.Errorf("404 should not be retried, waits = %v", rec.waits)
	}
}

func TestClient_Do_StopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(testConfig(), WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := client.Do(ctx, Request{URL: srv.URL})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestClient_Stream(t *testing.T) {
	payload := make([]byte, 100_000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	client := NewClient(testConfig())

	var lastWritten int64
	var got int
	err := client.Stream(context.Background(), srv.URL, func(written, total int64) {
		lastWritten = written
	}, func(body io.Reader) error {
		data, err := io.ReadAll(body)
		got = len(data)
		return err
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got != len(payload) || lastWritten != int64(len(payload)) {
		t.Errorf("read %d bytes, progress %d, want %d", got, lastWritten, len(payload))
	}
}

func TestClient_Get_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig()).Get(context.Background(), srv.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusForbidden {
		t.Fatalf("err = %v, want *StatusError with 403", err)
	}
}

func TestSleep_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return promptly on cancelled context")
	}
}
