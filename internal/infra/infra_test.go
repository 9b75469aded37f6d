package infra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterBurstThenRefill(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := NewRateLimiter(2, time.Second)
	rl.now = func() time.Time { return now }

	if !rl.TryAcquire() || !rl.TryAcquire() {
		t.Fatal("expected two tokens in the initial burst")
	}
	if rl.TryAcquire() {
		t.Fatal("expected bucket to be empty")
	}

	now = now.Add(1500 * time.Millisecond)
	if !rl.TryAcquire() {
		t.Fatal("expected one token after refill period")
	}
	if rl.TryAcquire() {
		t.Fatal("expected only one token to be refilled")
	}

	now = now.Add(time.Hour)
	rl.TryAcquire()
	if got := rl.Tokens(); got != float64(rl.maxTokens-1) {
		t.Errorf("tokens = %v, want capped at %d", got, rl.maxTokens-1)
	}
}

func TestRateLimiterWaitCancelled(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := rl.Wait(ctx); err == nil {
		t.Error("expected Wait to fail when the next token is beyond the deadline")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait blocked for %v", elapsed)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	if err := rl.Wait(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait err = %v, want context.Canceled", err)
	}
}

func TestPerMinute(t *testing.T) {
	rl := PerMinute(30)
	if rl.maxTokens != 30 {
		t.Errorf("maxTokens = %d, want 30", rl.maxTokens)
	}
	if rl.refillRate != 2*time.Second {
		t.Errorf("refillRate = %v, want 2s", rl.refillRate)
	}
}

func TestDoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "yes" {
			t.Errorf("missing custom header")
		}
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`{"value":42}`))
	}))
	defer srv.Close()

	var out struct {
		Value int `json:"value"`
	}
	err := DoJSON(context.Background(), srv.Client(), http.MethodGet, srv.URL, map[string]string{"X-Test": "yes"}, nil, &out)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if out.Value != 42 {
		t.Errorf("Value = %d, want 42", out.Value)
	}
}

func TestDoReturnsErrHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := Do(context.Background(), srv.Client(), http.MethodGet, srv.URL, nil, nil)
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *ErrHTTP", err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", httpErr.StatusCode)
	}
}

func TestDoJSONMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	var out map[string]any
	if err := DoJSON(context.Background(), srv.Client(), http.MethodGet, srv.URL, nil, nil, &out); err == nil {
		t.Fatal("expected decode error")
	}
}
