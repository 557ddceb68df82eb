package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/jbily/BANKS-MO/internal/cards"
	"github.com/jbily/BANKS-MO/internal/httputil"
	"github.com/shopspring/decimal"
)

type IssueCardRequest struct {
	AccountID      string `json:"accountId"`
	CardHolderName string `json:"cardHolderName"`
}

func (h *Handler) IssueCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req IssueCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid accountId")
		return
	}
	if req.CardHolderName == "" {
		httputil.WriteError(w, http.StatusBadRequest, "cardHolderName is required")
		return
	}

	card, err := h.cards.Issue(r.Context(), userID, accountID, req.CardHolderName)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, card)
}

func (h *Handler) GetCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	list, err := h.cards.Cards(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"cards": list})
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	card, err := h.cards.Card(r.Context(), userID, cardID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, card)
}

func (h *Handler) FreezeCard(w http.ResponseWriter, r *http.Request) {
	h.setCardFrozen(w, r, true)
}

func (h *Handler) UnfreezeCard(w http.ResponseWriter, r *http.Request) {
	h.setCardFrozen(w, r, false)
}

func (h *Handler) setCardFrozen(w http.ResponseWriter, r *http.Request, frozen bool) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	var (
		card any
		err  error
	)
	if frozen {
		card, err = h.cards.Freeze(r.Context(), userID, cardID)
	} else {
		card, err = h.cards.Unfreeze(r.Context(), userID, cardID)
	}
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, card)
}

type PurchaseRequest struct {
	Amount   string `json:"amount"`
	Merchant string `json:"merchant"`
	Channel  string `json:"channel,omitempty"`
}

func (h *Handler) CardPurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	channel := cards.Channel(req.Channel)
	if channel == "" {
		channel = cards.ChannelPOS
	}

	rec, err := h.cards.Purchase(r.Context(), userID, cardID, amount, req.Merchant, channel)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transaction": rec})
}
