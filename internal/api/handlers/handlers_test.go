package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/internal/scheduler"
	"github.com/TMG-TheMoneyGame/AShareData/internal/store/memory"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	at := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Upsert(context.Background(), contracts.TableCustomIndex, []contracts.Observation{
		contracts.NewObservation(at, "CI0001.CUSTOM", contracts.FieldReturn, 0.01),
		contracts.NewObservation(at.AddDate(0, 0, -1), "CI0002.CUSTOM", contracts.FieldReturn, 0.02),
	}))
	return s
}

func serve(h http.HandlerFunc, path, target string) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	r.HandleFunc(path, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestCheckpointHandler_Get(t *testing.T) {
	h := NewCheckpointHandler(seeded(t), logger.Nop())

	tests := []struct {
		name   string
		target string
		status int
		latest string
	}{
		{"whole table", "/api/checkpoints/custom_index", http.StatusOK, "2024-01-05"},
		{"scoped by id", "/api/checkpoints/custom_index?id=CI0002.CUSTOM", http.StatusOK, "2024-01-04"},
		{"empty table", "/api/checkpoints/const_limit", http.StatusOK, ""},
		{"unknown table", "/api/checkpoints/orders", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h.Get, "/api/checkpoints/{table}", tt.target)
			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				return
			}

			var resp CheckpointResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			if tt.latest == "" {
				assert.Nil(t, resp.Latest)
				return
			}
			require.NotNil(t, resp.Latest)
			assert.Equal(t, tt.latest, *resp.Latest)
		})
	}
}

type downStore struct{ contracts.Store }

func (downStore) LatestTimestamp(context.Context, string, *contracts.EntityFilter) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("connection refused")
}

func TestCheckpointHandler_StoreDown(t *testing.T) {
	h := NewCheckpointHandler(downStore{}, logger.Nop())

	rec := serve(h.Get, "/api/checkpoints/{table}", "/api/checkpoints/const_limit")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(h.List, "/api/checkpoints", "/api/checkpoints")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCheckpointHandler_List(t *testing.T) {
	h := NewCheckpointHandler(seeded(t), logger.Nop())

	rec := serve(h.List, "/api/checkpoints", "/api/checkpoints")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []CheckpointResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, len(contracts.Tables))
	for _, c := range resp {
		if c.Table == contracts.TableCustomIndex {
			require.NotNil(t, c.Latest)
			assert.Equal(t, "2024-01-05", *c.Latest)
		} else {
			assert.Nil(t, c.Latest, c.Table)
		}
	}
}

type fixedStats map[string]scheduler.JobStats

func (f fixedStats) GetJobStats() map[string]scheduler.JobStats { return f }

func TestJobsHandler_List(t *testing.T) {
	h := NewJobsHandler(fixedStats{"compose": {JobName: "compose", Schedule: "@daily", TotalRuns: 2}})

	rec := serve(h.List, "/api/jobs", "/api/jobs")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]scheduler.JobStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp["compose"].TotalRuns)
}
