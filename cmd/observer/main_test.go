package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"kube-cost-observer/pkg/cost"
	"kube-cost-observer/pkg/logger"
	"kube-cost-observer/pkg/pricing"
	"kube-cost-observer/pkg/query"
	"kube-cost-observer/pkg/repository"
)

type stubResyncer struct {
	calls int
}

func (s *stubResyncer) Resync() bool {
	s.calls++
	return true
}

func newTestMux(resyncer *stubResyncer) *http.ServeMux {
	repo := repository.NewMemoryRepository()
	engine := cost.NewEngine(repo, pricing.NewResolver())
	return newServeMux(query.NewService(repo, engine, resyncer, logger.Nop()))
}

func TestResyncEndpoint(t *testing.T) {
	resyncer := &stubResyncer{}
	mux := newTestMux(resyncer)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resync", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("POST /resync = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if resyncer.calls != 1 {
		t.Errorf("resyncer called %d times, want 1", resyncer.calls)
	}
}

func TestResyncEndpointRejectsGet(t *testing.T) {
	resyncer := &stubResyncer{}
	mux := newTestMux(resyncer)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resync", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /resync = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if resyncer.calls != 0 {
		t.Errorf("resyncer called %d times, want 0", resyncer.calls)
	}
}

func TestMetricsEndpointMounted(t *testing.T) {
	mux := newTestMux(&stubResyncer{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d, want %d", rec.Code, http.StatusOK)
	}
}
