package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes mounts every endpoint. The Stripe webhook stays outside the
// auth middleware: Stripe signs its requests instead of carrying a
// bearer token. The SSE stream sits outside it too and checks the token
// itself, since EventSource clients can only pass it as a query param.
func (h *Handler) Routes(auth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/webhooks/stripe", h.StripeWebhook)
	r.Get("/auctions/{auctionId}/stream", h.StreamBids)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Route("/auctions", func(r chi.Router) {
			r.Post("/", h.CreateAuction)
			r.Route("/{auctionId}", func(r chi.Router) {
				r.Get("/", h.GetAuction)
				r.Put("/", h.UpdateAuction)
				r.Delete("/", h.DeleteAuction)
				r.Post("/publish", h.PublishAuction)
				r.Post("/cancel", h.CancelAuction)

				r.Get("/price", h.CurrentPrice)
				r.Get("/bids", h.BidHistory)
				r.Post("/bids", h.SubmitBid)

				r.Post("/deposits/seller", h.PaySellerDeposit)
				r.Post("/deposits/bidder", h.PayBidderDeposit)

				r.Post("/purchase", h.CompletePurchase)
				r.Post("/buy-now", h.BuyNow)
				r.Post("/delivery", h.ConfirmDelivery)
			})
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", h.WalletBalance)
			r.Post("/top-up", h.WalletTopUp)
			r.Post("/withdraw", h.WalletWithdraw)
		})
	})

	return r
}
