package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smikhalev/support-rag/internal/core/domain"
	"github.com/smikhalev/support-rag/internal/infrastructure/resilience"
)

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Policy{
		AttemptLimit:  2,
		BackoffBase:   time.Millisecond,
		BackoffCap:    2 * time.Millisecond,
		BackoffFactor: 2,
	}, nil)
}

func TestRerankReturnsScoresInPassageOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "refund policy" || len(req.Texts) != 2 {
			t.Fatalf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(rerankResponse{Scores: []float64{0.2, 0.9}})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL}, nil)
	scores, err := client.Rerank(context.Background(), "refund policy", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(scores) != 2 || scores[0] != 0.2 || scores[1] != 0.9 {
		t.Fatalf("unexpected scores: %v", scores)
	}
}

func TestRerankRejectsScoreCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(rerankResponse{Scores: []float64{0.5}})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL}, nil)
	if _, err := client.Rerank(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestRerankEmptyInputSkipsRequest(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:0"}, nil)
	scores, err := client.Rerank(context.Background(), "q", nil)
	if err != nil || scores != nil {
		t.Fatalf("expected nil, nil for empty input, got %v, %v", scores, err)
	}
}

func TestRerankBoundsConcurrentRequests(t *testing.T) {
	var inFlight, peak int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt64(&inFlight, 1)
		for {
			observed := atomic.LoadInt64(&peak)
			if current <= observed || atomic.CompareAndSwapInt64(&peak, observed, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		_ = json.NewEncoder(w).Encode(rerankResponse{Scores: []float64{0.5}})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, MaxConcurrent: 2}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Rerank(context.Background(), "q", []string{"a"}); err != nil {
				t.Errorf("Rerank() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if atomic.LoadInt64(&peak) > 2 {
		t.Fatalf("concurrency cap exceeded: peak %d", peak)
	}
}

func TestRerankRetriesOnceOnTransientFailure(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			http.Error(w, "model warming up", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(rerankResponse{Scores: []float64{0.7}})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL}, fastExecutor())
	scores, err := client.Rerank(context.Background(), "q", []string{"a"})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(scores) != 1 || scores[0] != 0.7 {
		t.Fatalf("unexpected scores: %v", scores)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Fatalf("expected a single retry, server saw %d calls", got)
	}
}

func TestRerankPersistentFailureIsTemporary(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL}, fastExecutor())
	_, err := client.Rerank(context.Background(), "q", []string{"a"})
	if err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Fatalf("expected exactly two attempts, server saw %d calls", got)
	}
}

func TestRerankDoesNotRetryClientErrors(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL}, fastExecutor())
	_, err := client.Rerank(context.Background(), "q", []string{"a"})
	if err == nil {
		t.Fatalf("expected error for rejected request")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("client error must not be marked temporary: %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("client error must not be retried, server saw %d calls", got)
	}
}

func TestRerankHonorsCancelledContextWhileWaiting(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:0", MaxConcurrent: 1}, nil)
	client.slots <- struct{}{} // occupy the only slot

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := client.Rerank(ctx, "q", []string{"a"}); err == nil {
		t.Fatalf("expected context error while waiting for a slot")
	}
}
