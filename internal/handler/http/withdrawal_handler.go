package http

import (
	"fmt"
	"net/http"
	"strings"
	"withdrawal/internal/domain"
	"withdrawal/internal/port"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const idempotencyHeader = "Idempotency-Key"

type WithdrawalHandler struct {
	service port.WithdrawalService
	logger  zerolog.Logger
}

func NewWithdrawalHandler(service port.WithdrawalService, logger zerolog.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{
		service: service,
		logger:  logger.With().Str("component", "withdrawal_handler").Logger(),
	}
}

func (h *WithdrawalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.WithdrawalReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if key := strings.TrimSpace(r.Header.Get(idempotencyHeader)); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	withdrawal, err := h.service.CreateWithdrawal(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, withdrawal)
}

func (h *WithdrawalHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ListWithdrawals(r.Context()))
}

func (h *WithdrawalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := withdrawalID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	withdrawal, err := h.service.GetWithdrawal(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawal)
}

func (h *WithdrawalHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := withdrawalID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status, err := h.service.GetWithdrawalStatus(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.WithdrawalStatusResp{ID: id, Status: status})
}

func withdrawalID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "withdrawalID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid withdrawal id %q", domain.ErrValidation, raw)
	}
	return id, nil
}
