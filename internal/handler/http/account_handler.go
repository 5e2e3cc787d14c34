package http

import (
	"net/http"
	"withdrawal/internal/domain"
	"withdrawal/internal/port"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type AccountHandler struct {
	service port.AccountService
	logger  zerolog.Logger
}

func NewAccountHandler(service port.AccountService, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{
		service: service,
		logger:  logger.With().Str("component", "account_handler").Logger(),
	}
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.AccountReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	acc, err := h.service.CreateAccount(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ListAccounts(r.Context()))
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// AdjustBalance deposits the amount in the body into the account in the path.
func (h *AccountHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req domain.BalanceReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.Address = chi.URLParam(r, "address")

	acc, err := h.service.AdjustBalance(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}
