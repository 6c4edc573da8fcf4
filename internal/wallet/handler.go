package wallet

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

// Request/response shapes use snake_case JSON, matching the client contracts.

type SubmitWithdrawalRequest struct {
	AmountPaise   int64  `json:"amount_paise"`
	BankAccount   string `json:"bank_account"`
	IFSC          string `json:"ifsc"`
	AccountHolder string `json:"account_holder"`
}

type SubmitDepositRequest struct {
	AmountPaise   int64  `json:"amount_paise"`
	PaymentMethod string `json:"payment_method"`
	DiscountCode  string `json:"discount_code,omitempty"`
}

type DepositQuoteRequest struct {
	AmountPaise  int64  `json:"amount_paise"`
	DiscountCode string `json:"discount_code,omitempty"`
}

type DepositQuoteResponse struct {
	AmountPaise      int64  `json:"amount_paise"`
	DiscountCode     string `json:"discount_code,omitempty"`
	FinalAmountPaise int64  `json:"final_amount_paise"`
}

type RequestResponse struct {
	Request *models.MovementRequest `json:"request"`
	History []models.Transition     `json:"history,omitempty"`
}

type UnholdRequestBody struct {
	Reason string `json:"reason"`
}

type TicketMessageBody struct {
	Body string `json:"body"`
}

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

func (h *Handler) SubmitWithdrawal(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req SubmitWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	created, err := h.engine.SubmitWithdrawal(r.Context(), ident.UserID, models.SubmitWithdrawalInput{
		AmountPaise:   req.AmountPaise,
		BankAccount:   req.BankAccount,
		IFSC:          req.IFSC,
		AccountHolder: req.AccountHolder,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RequestResponse{Request: created})
}

func (h *Handler) SubmitDeposit(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req SubmitDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	created, err := h.engine.SubmitDeposit(r.Context(), ident.UserID, models.SubmitDepositInput{
		AmountPaise:   req.AmountPaise,
		PaymentMethod: req.PaymentMethod,
		DiscountCode:  req.DiscountCode,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RequestResponse{Request: created})
}

func (h *Handler) QuoteDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	final, err := h.engine.QuoteDeposit(r.Context(), req.AmountPaise, req.DiscountCode)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DepositQuoteResponse{
		AmountPaise:      req.AmountPaise,
		DiscountCode:     req.DiscountCode,
		FinalAmountPaise: final,
	})
}

// GetRequest returns the caller's request with its full transition history
// and linked ticket id, if any.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid request id"}`, http.StatusBadRequest)
		return
	}
	req, history, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if req.UserID != ident.UserID {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, RequestResponse{Request: req, History: history})
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.engine.ListByUser(r.Context(), ident.UserID)
	if err != nil {
		h.log.Error("list requests", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	acc, err := h.ledger.GetBalance(r.Context(), ident.UserID)
	if err != nil {
		http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) ListLedgerEntries(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	entries, err := h.ledger.ListEntries(r.Context(), ident.UserID)
	if err != nil {
		h.log.Error("list ledger entries", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) RequestUnhold(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var body UnholdRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	u, err := h.engine.RequestUnhold(r.Context(), ident.UserID, body.Reason)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) ListUnholds(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.engine.ListUnholds(r.Context(), ident.UserID)
	if err != nil {
		h.log.Error("list unhold requests", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Contest escalates a rejected withdrawal to support and records the
// caller's first message on the ticket.
func (h *Handler) Contest(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid request id"}`, http.StatusBadRequest)
		return
	}
	var body TicketMessageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	ticket, err := h.engine.Contest(r.Context(), ident.UserID, id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if body.Body != "" {
		if _, err := h.tickets.AppendMessage(r.Context(), ticket.ID, ident.UserID, "user", body.Body); err != nil {
			h.log.Error("append contest message", "ticket_id", ticket.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) AppendTicketMessage(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	ticketID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid ticket id"}`, http.StatusBadRequest)
		return
	}
	ticket, err := h.tickets.GetByID(r.Context(), ticketID)
	if err != nil {
		http.Error(w, `{"error":"ticket not found"}`, http.StatusNotFound)
		return
	}
	if ticket.UserID != ident.UserID && ident.Role != "admin" && ident.Role != "support" {
		http.Error(w, `{"error":"ticket not found"}`, http.StatusNotFound)
		return
	}
	var body TicketMessageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Body == "" {
		http.Error(w, `{"error":"message body is required"}`, http.StatusBadRequest)
		return
	}
	msg, err := h.tickets.AppendMessage(r.Context(), ticketID, ident.UserID, ident.Role, body.Body)
	if err != nil {
		h.log.Error("append ticket message", "ticket_id", ticketID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) ListTicketMessages(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	ticketID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid ticket id"}`, http.StatusBadRequest)
		return
	}
	ticket, err := h.tickets.GetByID(r.Context(), ticketID)
	if err != nil {
		http.Error(w, `{"error":"ticket not found"}`, http.StatusNotFound)
		return
	}
	if ticket.UserID != ident.UserID && ident.Role != "admin" && ident.Role != "support" {
		http.Error(w, `{"error":"ticket not found"}`, http.StatusNotFound)
		return
	}
	msgs, err := h.tickets.ListMessages(r.Context(), ticketID)
	if err != nil {
		h.log.Error("list ticket messages", "ticket_id", ticketID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeEngineError maps engine error kinds to HTTP statuses. The message
// carries the kind and human-readable reason.
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
		h.log.Error("wallet operation failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, status)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
