package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-auction/internal/auction"
	"ms-auction/internal/bids"
	"ms-auction/internal/deposit"
	"ms-auction/internal/escrow"
	"ms-auction/internal/fault"
	"ms-auction/internal/identity"
	"ms-auction/internal/logger"
	"ms-auction/internal/models"
	"ms-auction/internal/settlement"
	"ms-auction/internal/sse"
	"ms-auction/internal/utils"
	"ms-auction/internal/wallet"
)

type Handler struct {
	Auctions   *auction.Service
	Bids       *bids.Service
	Deposits   *deposit.Service
	Settlement *settlement.Service
	Wallet     *wallet.Service
	Webhook    *escrow.WebhookProcessor
	Emitter    *sse.BidEventEmitter
	Log        *logger.Logger
}

// writeError maps the fault sentinels onto HTTP status codes. Internal
// failures never leak their detail to the client.
func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	detail := err.Error()
	switch {
	case errors.Is(err, fault.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, fault.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, fault.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, fault.ErrInvalidBid):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, fault.ErrIllegalStateTransition), errors.Is(err, fault.ErrPreconditionFailed):
		status = http.StatusPreconditionFailed
	default:
		h.Log.Error("API", detail)
		detail = "internal error"
	}
	utils.WriteJSON(w, status, utils.ErrorResponse(message, detail))
}

func (h *Handler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req models.AuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.Auctions.Create(r.Context(), identity.UserID(r.Context()), req)
	if err != nil {
		h.writeError(w, "Could not create auction", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("auction created", created))
}

func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")
	found, err := h.Auctions.Get(r.Context(), auctionID)
	if err != nil {
		h.writeError(w, "Auction not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("auction", found))
}

func (h *Handler) UpdateAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")

	var req models.AuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.Auctions.Update(r.Context(), auctionID, identity.UserID(r.Context()), req)
	if err != nil {
		h.writeError(w, "Could not update auction", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("auction updated", updated))
}

func (h *Handler) PublishAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")
	published, err := h.Auctions.Publish(r.Context(), auctionID, identity.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "Could not publish auction", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("auction published", published))
}

func (h *Handler) DeleteAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")
	if err := h.Auctions.Delete(r.Context(), auctionID, identity.UserID(r.Context())); err != nil {
		h.writeError(w, "Could not delete auction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CancelAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")
	if err := h.Settlement.CancelAuction(r.Context(), auctionID, identity.UserID(r.Context())); err != nil {
		h.writeError(w, "Could not cancel auction", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("auction cancelled", nil))
}

func (h *Handler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")

	var req models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	bid, err := h.Bids.Submit(r.Context(), auctionID, identity.UserID(r.Context()), req.Amount)
	if err != nil {
		h.writeError(w, "Could not submit bid", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("bid accepted", bid))
}

func (h *Handler) CurrentPrice(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")
	price, err := h.Bids.CurrentPrice(r.Context(), auctionID)
	if err != nil {
		h.writeError(w, "Could not read current price", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("current price", map[string]int64{"current_price": price}))
}

func (h *Handler) BidHistory(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")
	history, err := h.Bids.History(r.Context(), auctionID)
	if err != nil {
		h.writeError(w, "Could not read bid history", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("bids", history))
}

func (h *Handler) PaySellerDeposit(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")

	var req models.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	payment, err := h.Deposits.PaySellerDeposit(r.Context(), auctionID, identity.UserID(r.Context()), req.UseWallet)
	if err != nil {
		h.writeError(w, "Could not pay seller deposit", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("seller deposit", payment))
}

func (h *Handler) PayBidderDeposit(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")

	var req models.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	payment, err := h.Deposits.PayBidderDeposit(r.Context(), auctionID, identity.UserID(r.Context()), req.Amount, req.UseWallet)
	if err != nil {
		h.writeError(w, "Could not pay bidder deposit", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("bidder deposit", payment))
}

func (h *Handler) CompletePurchase(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")

	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Settlement.CompletePurchase(r.Context(), auctionID, identity.UserID(r.Context()), req.UseWallet); err != nil {
		h.writeError(w, "Could not complete purchase", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("purchase complete", nil))
}

func (h *Handler) BuyNow(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")

	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Settlement.BuyNow(r.Context(), auctionID, identity.UserID(r.Context()), req.UseWallet); err != nil {
		h.writeError(w, "Could not buy now", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("auction bought", nil))
}

func (h *Handler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")
	if err := h.Settlement.ConfirmDelivery(r.Context(), auctionID, identity.UserID(r.Context())); err != nil {
		h.writeError(w, "Could not confirm delivery", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("delivery confirmed", nil))
}

func (h *Handler) WalletBalance(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())
	balance, err := h.Wallet.Balance(r.Context(), userID)
	if err != nil {
		h.writeError(w, "Could not read balance", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("wallet balance", map[string]int64{"balance": balance}))
}

func (h *Handler) WalletTopUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.Wallet.TopUp(r.Context(), identity.UserID(r.Context()), req.Amount)
	if err != nil {
		h.writeError(w, "Could not top up wallet", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("wallet topped up", entry))
}

func (h *Handler) WalletWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.Wallet.Withdraw(r.Context(), identity.UserID(r.Context()), req.Amount)
	if err != nil {
		h.writeError(w, "Could not withdraw from wallet", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("wallet withdrawal", entry))
}

// StripeWebhook receives payment intent callbacks. Signature checking and
// event dispatch live in the webhook processor.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.Webhook.Process(r); err != nil {
		var whErr *escrow.WebhookError
		if errors.As(err, &whErr) {
			h.Log.Error("WEBHOOK", whErr.InternalError)
			http.Error(w, whErr.PublicError, whErr.StatusCode)
			return
		}
		h.Log.Error("WEBHOOK", err.Error())
		http.Error(w, "webhook processing failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
