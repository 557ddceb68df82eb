package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jbily/BANKS-MO/internal/httputil"
	"github.com/jbily/BANKS-MO/internal/ledger"
	"github.com/jbily/BANKS-MO/internal/models"
	"github.com/shopspring/decimal"
)

type CreateAccountRequest struct {
	AccountType    string `json:"accountType"`
	Currency       string `json:"currency"`
	InitialDeposit string `json:"initialDeposit,omitempty"`
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	initial := decimal.Zero
	if req.InitialDeposit != "" {
		var err error
		initial, err = decimal.NewFromString(req.InitialDeposit)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid initial deposit")
			return
		}
	}

	acct, err := h.ledger.OpenAccount(r.Context(), userID, ledger.OpenAccountParams{
		Type:           models.AccountType(req.AccountType),
		Currency:       models.Currency(req.Currency),
		InitialDeposit: initial,
	})
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, acct)
}

func (h *Handler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	accounts, err := h.ledger.Accounts(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "accountID")
	if !ok {
		return
	}
	acct, err := h.ledger.Account(r.Context(), userID, accountID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct)
}

func (h *Handler) GetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "accountID")
	if !ok {
		return
	}

	f := ledger.TransactionFilter{
		Status: models.TransactionStatus(r.URL.Query().Get("status")),
	}
	f.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	f.PerPage, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	txs, total, err := h.ledger.Transactions(r.Context(), userID, accountID, f)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	f = f.Normalize()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"totalCount":   total,
		"currentPage":  f.Page,
	})
}

type AmountRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

type balanceOp func(ctx context.Context, userID, accountID uuid.UUID, amount decimal.Decimal, description string) (*models.Account, *models.Transaction, error)

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.mutateBalance(w, r, h.ledger.Deposit)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.mutateBalance(w, r, h.ledger.Withdraw)
}

func (h *Handler) mutateBalance(w http.ResponseWriter, r *http.Request, op balanceOp) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "accountID")
	if !ok {
		return
	}
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	acct, rec, err := op(r.Context(), userID, accountID, amount, req.Description)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"transaction": rec,
		"newBalance":  acct.Balance,
	})
}

func (h *Handler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "accountID")
	if !ok {
		return
	}
	if err := h.ledger.Close(r.Context(), userID, accountID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "account closed"})
}

type UpdateLimitsRequest struct {
	DailyTransferLimit   *string `json:"dailyTransferLimit,omitempty"`
	MonthlyTransferLimit *string `json:"monthlyTransferLimit,omitempty"`
}

func (h *Handler) UpdateLimits(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "accountID")
	if !ok {
		return
	}
	var req UpdateLimitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	daily, ok := parseOptionalAmount(w, req.DailyTransferLimit, "invalid daily limit")
	if !ok {
		return
	}
	monthly, ok := parseOptionalAmount(w, req.MonthlyTransferLimit, "invalid monthly limit")
	if !ok {
		return
	}

	acct, err := h.ledger.UpdateLimits(r.Context(), userID, accountID, daily, monthly)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct)
}

type TransferRequest struct {
	FromAccountID string `json:"fromAccountId"`
	ToAccountID   string `json:"toAccountId"`
	Amount        string `json:"amount"`
	Description   string `json:"description,omitempty"`
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fromID, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid fromAccountId")
		return
	}
	toID, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid toAccountId")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	rec, err := h.ledger.Transfer(r.Context(), userID, fromID, toID, amount, req.Description)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transaction": rec})
}

type RefundRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	reference := chi.URLParam(r, "reference")
	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	rec, err := h.ledger.Refund(r.Context(), userID, reference, amount, req.Description)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transaction": rec})
}

func (h *Handler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	reference := chi.URLParam(r, "reference")
	if err := h.ledger.CancelTransaction(r.Context(), userID, reference); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "transaction cancelled"})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalAmount(w http.ResponseWriter, s *string, msg string) (*decimal.Decimal, bool) {
	if s == nil {
		return nil, true
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return nil, false
	}
	return &d, true
}
