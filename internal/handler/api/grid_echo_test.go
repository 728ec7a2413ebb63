package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"MicroGrid/internal/domain/models"
)

type stubSnapshots struct {
	snap *models.Snapshot
	err  error
}

func (s *stubSnapshots) Save(_ context.Context, snap *models.Snapshot) error {
	s.snap = snap
	return nil
}

func (s *stubSnapshots) Latest(context.Context) (*models.Snapshot, error) { return s.snap, s.err }

type stubHistory []models.Record

func (h stubHistory) Recent(limit int) []models.Record {
	if limit > len(h) {
		limit = len(h)
	}
	return h[len(h)-limit:]
}

type stubHealth struct{ err error }

func (s stubHealth) Health(context.Context) error { return s.err }

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func serve(t *testing.T, h *GridEchoHandler, target string) envelope {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("%s: http status %d", target, rec.Code)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s: decode: %v", target, err)
	}
	return env
}

func TestStateBeforeFirstIteration(t *testing.T) {
	h := NewGridEchoHandler(nil, &stubSnapshots{}, nil)
	if env := serve(t, h, "/api/state"); env.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", env.Status)
	}
}

func TestStateReportsHalt(t *testing.T) {
	snaps := &stubSnapshots{snap: &models.Snapshot{
		Record: models.Record{Iteration: 12, Frequency: 63.1},
		Halted: true,
		Reason: "out_of_phase",
		RunTag: "run1",
	}}
	env := serve(t, NewGridEchoHandler(nil, snaps, nil), "/api/state")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d", env.Status)
	}
	var got models.Snapshot
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if !got.Halted || got.Reason != "out_of_phase" || got.Record.Iteration != 12 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestStateStoreError(t *testing.T) {
	h := NewGridEchoHandler(nil, &stubSnapshots{err: errors.New("redis down")}, nil)
	if env := serve(t, h, "/api/state"); env.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", env.Status)
	}
}

func TestRecordsLimit(t *testing.T) {
	hist := stubHistory{{Iteration: 0}, {Iteration: 1}, {Iteration: 2}}
	env := serve(t, NewGridEchoHandler(nil, &stubSnapshots{}, hist), "/api/records?limit=2")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d", env.Status)
	}
	var list struct {
		Rows  []models.Record `json:"rows"`
		Total int64           `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 2 || list.Rows[0].Iteration != 1 || list.Rows[1].Iteration != 2 {
		t.Fatalf("unexpected rows %+v", list)
	}
}

func TestRecordsRejectsOversizedLimit(t *testing.T) {
	h := NewGridEchoHandler(nil, &stubSnapshots{}, stubHistory{})
	if env := serve(t, h, "/api/records?limit=100000"); env.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", env.Status)
	}
}

func TestHealthDegraded(t *testing.T) {
	h := NewGridEchoHandler(nil, &stubSnapshots{}, nil)
	h.AddHealthCheck("clickhouse", stubHealth{err: errors.New("timeout")})
	h.AddHealthCheck("redis", stubHealth{})

	env := serve(t, h, "/api/health")
	var res healthStatus
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if res.Status != "degraded" || res.Checks["redis"] != "ok" || res.Checks["clickhouse"] != "timeout" {
		t.Fatalf("unexpected health %+v", res)
	}
}

type stubStorage struct {
	runTag   string
	from, to time.Time
	limit    int
	rows     []*models.Record
}

func (s *stubStorage) Init(context.Context) error                         { return nil }
func (s *stubStorage) Store(context.Context, *models.Record) error        { return nil }
func (s *stubStorage) StoreBatch(context.Context, []*models.Record) error { return nil }
func (s *stubStorage) Health(context.Context) error                       { return nil }
func (s *stubStorage) Close() error                                       { return nil }
func (s *stubStorage) Query(_ context.Context, runTag string, from, to time.Time, limit int) ([]*models.Record, error) {
	s.runTag, s.from, s.to, s.limit = runTag, from, to, limit
	return s.rows, nil
}

func TestHistoryDefaultsToCurrentRun(t *testing.T) {
	st := &stubStorage{rows: []*models.Record{{Iteration: 3}, {Iteration: 2}}}
	h := NewGridEchoHandler(nil, &stubSnapshots{}, nil)
	h.SetStorage(st, "2024-03-28_090507")

	env := serve(t, h, "/api/history?from=1700000000&limit=2")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d", env.Status)
	}
	if st.runTag != "2024-03-28_090507" || st.limit != 2 || st.from.Unix() != 1700000000 {
		t.Fatalf("unexpected query %+v", st)
	}
	var res historyResponse
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Total != 2 || res.Rows[0].Iteration != 3 {
		t.Fatalf("unexpected history %+v", res)
	}
}

func TestHistoryRejectsInvertedRange(t *testing.T) {
	h := NewGridEchoHandler(nil, &stubSnapshots{}, nil)
	h.SetStorage(&stubStorage{}, "run")
	if env := serve(t, h, "/api/history?from=1700000100&to=1700000000"); env.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", env.Status)
	}
}

func TestHistoryWithoutStorage(t *testing.T) {
	h := NewGridEchoHandler(nil, &stubSnapshots{}, nil)
	if env := serve(t, h, "/api/history"); env.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", env.Status)
	}
}
