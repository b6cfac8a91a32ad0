package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ecofinds/marketplace/internal/api/middleware"
	"github.com/ecofinds/marketplace/internal/errors"
	"github.com/ecofinds/marketplace/internal/models"
	service "github.com/ecofinds/marketplace/internal/services"
	"github.com/ecofinds/marketplace/internal/utils/response"
)

type PurchaseHandler struct {
	purchaseService service.PurchaseService
}

func NewPurchaseHandler(purchaseService service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchaseService: purchaseService}
}

// Checkout godoc
//
//	@Summary		Check out the current cart
//	@Description	Creates one ledger entry per cart line under a fresh transaction id, decrements tracked stock, and empties the cart.
//	@Tags			Purchases
//	@Produce		json
//	@Success		200	{object}	models.CheckoutResponse
//	@Failure		400	{object}	response.ErrorResponse	"Empty cart or insufficient stock"
//	@Security		BearerAuth
//	@Router			/purchases [post]
func (h *PurchaseHandler) Checkout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := r.Context().Value(middleware.UserContextKey).(*models.Claims)
		if !ok {
			logger.Warn("Unauthorized checkout attempt")
			response.Error(w, errors.UnauthorizedError("Authentication required"))
			return
		}

		result, err := h.purchaseService.Checkout(r.Context(), claims.UserID)
		if err != nil {
			logger.Error("Checkout failed", slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Checkout completed", slog.String("transactionId", result.TransactionID), slog.Int("items", len(result.Items)))
		response.Success(w, http.StatusOK, result)
	}
}

// GetPurchases godoc
//
//	@Summary		List purchase history
//	@Description	Returns all ledger entries grouped by transaction id.
//	@Tags			Purchases
//	@Produce		json
//	@Success		200	{object}	models.PurchaseHistoryResponse
//	@Security		BearerAuth
//	@Router			/purchases [get]
func (h *PurchaseHandler) GetPurchases() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := r.Context().Value(middleware.UserContextKey).(*models.Claims)
		if !ok {
			logger.Warn("Unauthorized purchase history attempt")
			response.Error(w, errors.UnauthorizedError("Authentication required"))
			return
		}

		transactions, err := h.purchaseService.GetPurchases(r.Context(), claims.UserID)
		if err != nil {
			logger.Error("Failed to fetch purchases", slog.Any("error", err))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, models.PurchaseHistoryResponse{Transactions: transactions})
	}
}

// GetTransaction godoc
//
//	@Summary		Get one transaction
//	@Tags			Purchases
//	@Produce		json
//	@Param			transactionId	path		string	true	"Transaction ID"
//	@Success		200				{object}	models.Transaction
//	@Failure		404				{object}	response.ErrorResponse	"Transaction not found"
//	@Security		BearerAuth
//	@Router			/purchases/{transactionId} [get]
func (h *PurchaseHandler) GetTransaction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := r.Context().Value(middleware.UserContextKey).(*models.Claims)
		if !ok {
			logger.Warn("Unauthorized transaction access attempt")
			response.Error(w, errors.UnauthorizedError("Authentication required"))
			return
		}

		transactionID := r.PathValue("transactionId")
		if transactionID == "" {
			response.Error(w, errors.BadRequestError("Missing transactionId parameter"))
			return
		}

		transaction, err := h.purchaseService.GetTransaction(r.Context(), claims.UserID, transactionID)
		if err != nil {
			logger.Error("Failed to fetch transaction", slog.String("transactionId", transactionID), slog.Any("error", err))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, transaction)
	}
}
