package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveRequest(http.MethodPost, "/graphql", 200, 15*time.Millisecond)
	c.ObserveRequest(http.MethodPost, "/graphql", 200, 5*time.Millisecond)

	got := testutil.ToFloat64(c.requests.WithLabelValues(http.MethodPost, "/graphql", "200"))
	if got != 2 {
		t.Errorf("requests_total = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(c.latency); n != 1 {
		t.Errorf("latency series = %d, want 1", n)
	}
}

func TestCollector_AuthFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordVerificationFailure("expired")
	c.RecordVerificationFailure("expired")
	c.RecordVerificationFailure("wrong-audience")

	if got := testutil.ToFloat64(c.authFailures.WithLabelValues("expired")); got != 2 {
		t.Errorf("expired = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.authFailures.WithLabelValues("wrong-audience")); got != 1 {
		t.Errorf("wrong-audience = %v, want 1", got)
	}
}

func TestCollector_KeyFetchesAndOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordKeyFetch(true)
	c.RecordKeyFetch(false)
	c.RecordOperation("createBook", "ok")
	c.RecordOperation("deleteBook", "NOT_FOUND")

	if got := testutil.ToFloat64(c.keyFetches.WithLabelValues("error")); got != 1 {
		t.Errorf("jwks error fetches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.operations.WithLabelValues("deleteBook", "NOT_FOUND")); got != 1 {
		t.Errorf("deleteBook NOT_FOUND = %v, want 1", got)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordOperation("books", "ok")

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "bookdash_book_operations_total") {
		t.Error("response should contain bookdash_book_operations_total")
	}
}

func TestNop_SatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.ObserveRequest(http.MethodGet, "/", 200, time.Second)
	r.RecordVerificationFailure("malformed")
	r.RecordKeyFetch(true)
	r.RecordOperation("books", "ok")
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}
