// Package api provides the HTTP surface: operational status, the audit
// trail, proof reconstruction, and manual loop triggers.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/agentpulse/engine/internal/domain"
	"github.com/agentpulse/engine/internal/ledger"
	"github.com/agentpulse/engine/internal/scheduler"
	"github.com/agentpulse/engine/internal/store"
	"github.com/agentpulse/engine/internal/strategy"
)

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	DB        *sql.DB
	Actions   *store.ActionRepo
	Strategy  *strategy.Store
	Scheduler *scheduler.Scheduler
	// Proofs is nil when the ledger is disabled; proof endpoints then 404.
	Proofs *ledger.Reconstructor
}

// StatusResponse is the body for GET /api/v1/status.
type StatusResponse struct {
	StrategyVersion int                    `json:"strategy_version"`
	Strategy        domain.StrategyParams  `json:"strategy"`
	LedgerEnabled   bool                   `json:"ledger_enabled"`
	Loops           []scheduler.LoopStatus `json:"loops"`
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	current := h.Strategy.Current()
	writeJSON(w, http.StatusOK, StatusResponse{
		StrategyVersion: current.Version,
		Strategy:        current.Params,
		LedgerEnabled:   h.Proofs != nil,
		Loops:           h.Scheduler.Status(),
	})
}

// TriggerLoop handles POST /api/v1/loops/{name}/trigger.
func (h *Handler) TriggerLoop(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.Scheduler.Trigger(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"loop": name, "result": "completed"})
}

// ListActions handles GET /api/v1/actions?limit=N.
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	recs, err := h.Actions.ListRecent(r.Context(), h.DB, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []domain.ActionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// GetStrategy handles GET /api/v1/strategy.
func (h *Handler) GetStrategy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Strategy.Current())
}

// ListAdaptations handles GET /api/v1/adaptations?limit=N.
func (h *Handler) ListAdaptations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	history, err := h.Strategy.History(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if history == nil {
		history = []domain.AdaptationRecord{}
	}
	writeJSON(w, http.StatusOK, history)
}

// ListProofs handles GET /api/v1/proofs?max=N.
func (h *Handler) ListProofs(w http.ResponseWriter, r *http.Request) {
	if h.Proofs == nil {
		writeJSON(w, http.StatusNotFound, APIError{Code: 404, Message: "ledger disabled"})
		return
	}
	maxTx := queryInt(r, "max", 200)
	proofs, err := h.Proofs.Proofs(r.Context(), maxTx)
	if err != nil {
		writeError(w, err)
		return
	}
	if proofs == nil {
		proofs = []domain.Proof{}
	}
	writeJSON(w, http.StatusOK, proofs)
}

// GetActionProof handles GET /api/v1/actions/{id}/proof.
func (h *Handler) GetActionProof(w http.ResponseWriter, r *http.Request) {
	if h.Proofs == nil {
		writeJSON(w, http.StatusNotFound, APIError{Code: 404, Message: "ledger disabled"})
		return
	}
	rec, err := h.Actions.GetByID(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	proof, err := h.Proofs.ProofFor(r.Context(), *rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proof)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var agentErr *domain.AgentError
	if errors.As(err, &agentErr) {
		status := http.StatusInternalServerError
		switch agentErr.Code {
		case domain.ErrLoopNotFound.Code, domain.ErrActionNotFound.Code:
			status = http.StatusNotFound
		case domain.ErrLoopBusy.Code:
			status = http.StatusConflict
		case domain.ErrRateLimited.Code:
			status = http.StatusTooManyRequests
		case domain.ErrStopped.Code:
			status = http.StatusServiceUnavailable
		case domain.ErrLedgerUnavailable.Code, domain.ErrLedgerTimeout.Code:
			status = http.StatusBadGateway
		}
		writeJSON(w, status, APIError{Code: agentErr.Code, Message: agentErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: err.Error()})
}
