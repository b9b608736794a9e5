package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/TMG-TheMoneyGame/AShareData/internal/checkpoint"
	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

// CheckpointHandler exposes the resume point of each table
// ⭐ SSOT: 체크포인트 조회 API는 여기서만
type CheckpointHandler struct {
	resolver *checkpoint.Resolver
	logger   *logger.Logger
}

// NewCheckpointHandler creates a new checkpoint handler
func NewCheckpointHandler(store contracts.Store, log *logger.Logger) *CheckpointHandler {
	return &CheckpointHandler{
		resolver: checkpoint.NewResolver(store),
		logger:   log,
	}
}

// CheckpointResponse is the body of GET /api/checkpoints/{table}.
// Latest is nil for an empty table.
type CheckpointResponse struct {
	Table  string  `json:"table"`
	ID     string  `json:"id,omitempty"`
	Latest *string `json:"latest"`
}

// Get returns the latest date of a table
// GET /api/checkpoints/{table}?id=CI0001.CUSTOM
func (h *CheckpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	if !contracts.KnownTable(table) {
		respondError(w, http.StatusNotFound, "unknown table "+table)
		return
	}

	resp := CheckpointResponse{Table: table, ID: r.URL.Query().Get("id")}
	var filter *contracts.EntityFilter
	if resp.ID != "" {
		filter = &contracts.EntityFilter{ID: resp.ID}
	}

	at, err := h.resolver.Resolve(r.Context(), table, time.Time{}, filter)
	if err != nil {
		h.logger.WithError(err).WithField("table", table).Error("Failed to resolve checkpoint")

		var sue *contracts.StoreUnavailableError
		if errors.As(err, &sue) {
			respondError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to resolve checkpoint")
		return
	}

	if !at.IsZero() {
		s := at.Format("2006-01-02")
		resp.Latest = &s
	}
	respondJSON(w, http.StatusOK, resp)
}

// List returns the latest date of every table
// GET /api/checkpoints
func (h *CheckpointHandler) List(w http.ResponseWriter, r *http.Request) {
	out := make([]CheckpointResponse, 0, len(contracts.Tables))
	for _, table := range contracts.Tables {
		at, err := h.resolver.Resolve(r.Context(), table, time.Time{}, nil)
		if err != nil {
			h.logger.WithError(err).WithField("table", table).Error("Failed to resolve checkpoint")
			respondError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		resp := CheckpointResponse{Table: table}
		if !at.IsZero() {
			s := at.Format("2006-01-02")
			resp.Latest = &s
		}
		out = append(out, resp)
	}
	respondJSON(w, http.StatusOK, out)
}
