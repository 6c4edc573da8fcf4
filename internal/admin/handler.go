package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/rupeevault/backend/internal/engine"
	"github.com/rupeevault/backend/internal/escalation"
	"github.com/rupeevault/backend/internal/ledger"
	"github.com/rupeevault/backend/internal/middleware"
	"github.com/rupeevault/backend/internal/models"
)

// Handler is the privileged mutation surface. It holds no state: role
// checks happen in middleware, everything else is delegated to the engine
// and its result surfaced verbatim.
type Handler struct {
	engine  *engine.Engine
	ledger  ledger.Service
	tickets escalation.Service
	log     *slog.Logger
}

func NewHandler(eng *engine.Engine, led ledger.Service, tickets escalation.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{engine: eng, ledger: led, tickets: tickets, log: log}
}

type actionBody struct {
	Reason          string `json:"reason,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	TransactionRef  string `json:"transaction_ref,omitempty"`
}

func (h *Handler) requestID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid request id"}`, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func actorFrom(r *http.Request) string {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		return "admin:unknown"
	}
	return ident.Role + ":" + ident.UserID.String()
}

func decodeAction(r *http.Request) actionBody {
	var body actionBody
	// Body is optional for most actions.
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body
}

// Approve is kind-dispatched convenience: a pending deposit completes with
// a generated reference; a pending or held withdrawal enters processing
// with the default window.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	req, _, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	body := decodeAction(r)
	var updated *models.MovementRequest
	switch req.Kind {
	case models.KindDeposit:
		updated, err = h.engine.Complete(r.Context(), actorFrom(r), id, body.TransactionRef)
	default:
		updated, err = h.engine.StartProcessing(r.Context(), actorFrom(r), id, body.DurationMinutes)
	}
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	body := decodeAction(r)
	updated, err := h.engine.Reject(r.Context(), actorFrom(r), id, body.Reason)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) Hold(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	body := decodeAction(r)
	updated, err := h.engine.Hold(r.Context(), actorFrom(r), id, body.Reason)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) StartProcessing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	body := decodeAction(r)
	updated, err := h.engine.StartProcessing(r.Context(), actorFrom(r), id, body.DurationMinutes)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	body := decodeAction(r)
	updated, err := h.engine.Complete(r.Context(), actorFrom(r), id, body.TransactionRef)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) Fail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	body := decodeAction(r)
	if body.Reason == "" {
		http.Error(w, `{"error":"a failure reason is required"}`, http.StatusBadRequest)
		return
	}
	updated, err := h.engine.Fail(r.Context(), actorFrom(r), id, body.Reason)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	updated, err := h.engine.Resubmit(r.Context(), actorFrom(r), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// GetRequest is the audit view: current state, full transition history,
// linked ticket if any.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	req, history, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": req, "history": history})
}

func (h *Handler) ApproveUnhold(w http.ResponseWriter, r *http.Request) {
	h.resolveUnhold(w, r, true)
}

func (h *Handler) RejectUnhold(w http.ResponseWriter, r *http.Request) {
	h.resolveUnhold(w, r, false)
}

func (h *Handler) resolveUnhold(w http.ResponseWriter, r *http.Request, approve bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid unhold request id"}`, http.StatusBadRequest)
		return
	}
	body := decodeAction(r)
	u, err := h.engine.ResolveUnhold(r.Context(), actorFrom(r), id, approve, body.Reason)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type createAccountBody struct {
	UserID uuid.UUID `json:"user_id"`
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var body createAccountBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == uuid.Nil {
		http.Error(w, `{"error":"user_id is required"}`, http.StatusBadRequest)
		return
	}
	acc, err := h.ledger.CreateAccount(r.Context(), body.UserID)
	if err != nil {
		h.log.Error("create account", "user_id", body.UserID, "error", err)
		http.Error(w, `{"error":"create account failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (h *Handler) CloseTicket(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid ticket id"}`, http.StatusBadRequest)
		return
	}
	if err := h.tickets.Close(r.Context(), id); err != nil {
		if errors.Is(err, escalation.ErrNotFound) {
			http.Error(w, `{"error":"no open ticket with that id"}`, http.StatusNotFound)
			return
		}
		h.log.Error("close ticket", "ticket_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeEngineError surfaces the engine's typed error, including the
// attempted transition on conflicts, for audit.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrDuplicateRequest):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrAccountOnHold):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.log.Error("admin operation failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, status)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
