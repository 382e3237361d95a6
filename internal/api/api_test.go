package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/munimap/anomaly-engine/internal/models"
	"github.com/munimap/anomaly-engine/internal/store"
)

type stubJob struct {
	count int
	err   error
	runs  int
}

func (j *stubJob) RunOnce(ctx context.Context) (int, error) {
	j.runs++
	return j.count, j.err
}

func newTestServer(t *testing.T, job JobRunner) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store open failed: %v", err)
	}
	srv := httptest.NewServer(NewHandler(st, job).Routes())
	t.Cleanup(func() {
		srv.Close()
		_ = st.Close()
	})
	return srv, st
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubJob{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestListAnomalies(t *testing.T) {
	srv, st := newTestServer(t, &stubJob{})

	ms := time.Now().UnixMilli()
	a := models.Anomaly{
		ID:            "anom_garbage_Old_Town_spike",
		Category:      "garbage",
		Type:          models.AnomalySpike,
		Area:          "Old Town",
		Metrics:       models.SpikeMetrics{CurrentReports: 12},
		Severity:      models.SeverityHigh,
		Status:        models.StatusOpen,
		FirstDetected: ms,
		LastUpdated:   ms,
	}
	if _, err := st.UpsertAnomalies(context.Background(), []models.Anomaly{a}, time.Now()); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/anomalies")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var docs []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Expected 1 anomaly, got %d", len(docs))
	}
	if docs[0]["id"] != a.ID {
		t.Errorf("id = %v, want %s", docs[0]["id"], a.ID)
	}
}

func TestListAnomalies_EmptyStoreReturnsEmptyArray(t *testing.T) {
	srv, _ := newTestServer(t, &stubJob{})

	resp, err := http.Get(srv.URL + "/api/anomalies")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var docs []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		t.Fatalf("empty list must decode as a JSON array: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("Expected empty array, got %d entries", len(docs))
	}
}

func TestTriggerRun(t *testing.T) {
	job := &stubJob{count: 3}
	srv, _ := newTestServer(t, job)

	resp, err := http.Post(srv.URL+"/api/run", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["anomalies"] != 3 {
		t.Errorf("anomalies = %d, want 3", body["anomalies"])
	}
	if job.runs != 1 {
		t.Errorf("job ran %d times, want 1", job.runs)
	}
}

func TestTriggerRun_Failure(t *testing.T) {
	srv, _ := newTestServer(t, &stubJob{err: errors.New("store unreachable")})

	resp, err := http.Post(srv.URL+"/api/run", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["error"] == "" {
		t.Error("error body must carry a message")
	}
}

func TestTriggerRun_MethodMatters(t *testing.T) {
	srv, _ := newTestServer(t, &stubJob{})

	resp, err := http.Get(srv.URL + "/api/run")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405 for GET on a POST route", resp.StatusCode)
	}
}
