package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ecofinds/marketplace/internal/api/middleware"
	apperrors "github.com/ecofinds/marketplace/internal/errors"
	"github.com/ecofinds/marketplace/internal/models"
	repository "github.com/ecofinds/marketplace/internal/repositories"
	"github.com/ecofinds/marketplace/pkg/sendgrid"
	"github.com/google/uuid"
)

type PurchaseService interface {
	Checkout(ctx context.Context, userID uuid.UUID) (*models.CheckoutResponse, error)
	GetPurchases(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, userID uuid.UUID, transactionID string) (*models.Transaction, error)
}

type purchaseService struct {
	purchaseRepo repository.PurchaseRepository
	cartRepo     repository.CartRepository
	productRepo  repository.ProductRepository
	userRepo     repository.UserRepository
	emailService sendgrid.EmailService
}

// emailService may be nil; checkout then skips the receipt.
func NewPurchaseService(purchaseRepo repository.PurchaseRepository, cartRepo repository.CartRepository,
	productRepo repository.ProductRepository, userRepo repository.UserRepository,
	emailService sendgrid.EmailService) PurchaseService {
	return &purchaseService{
		purchaseRepo: purchaseRepo,
		cartRepo:     cartRepo,
		productRepo:  productRepo,
		userRepo:     userRepo,
		emailService: emailService,
	}
}

// Checkout turns the whole cart into ledger entries sharing one transaction
// id, decrements tracked stock, and clears the cart. The storage layer runs
// all of it in one transaction, so a mid-checkout failure leaves nothing
// half-applied.
func (s *purchaseService) Checkout(ctx context.Context, userID uuid.UUID) (*models.CheckoutResponse, error) {

	cart, err := s.cartRepo.GetCartByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ValidationError("Cart is empty")
		}
		return nil, apperrors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	if len(cart.Items) == 0 {
		return nil, apperrors.ValidationError("Cart is empty")
	}

	items := make([]models.CartItem, 0, len(cart.Items))

	for _, item := range cart.Items {

		product, err := s.productRepo.GetProductByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, apperrors.NotFoundError("Product not found: " + item.ProductID.String()).WithError(err)
			}
			return nil, apperrors.DatabaseError("Failed to retrieve product").WithError(err)
		}

		if product.Stock != nil && item.Quantity > *product.Stock {
			return nil, apperrors.ValidationError(fmt.Sprintf("Cannot purchase more than %d of %q", *product.Stock, product.Title))
		}

		items = append(items, item)
	}

	transactionID := strconv.FormatInt(time.Now().UnixNano(), 10)
	purchasedAt := time.Now()

	err = s.purchaseRepo.RecordCheckout(ctx, userID, transactionID, items, purchasedAt)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			// a concurrent checkout won the conditional decrement
			return nil, apperrors.ValidationError("Insufficient stock for one or more items").WithError(err)
		}
		return nil, apperrors.DatabaseError("Failed to record purchase").WithError(err)
	}

	purchases, err := s.purchaseRepo.ListByTransaction(ctx, userID, transactionID)
	if err != nil {
		return nil, apperrors.DatabaseError("Failed to fetch purchase").WithError(err)
	}

	s.sendReceipt(ctx, userID, transactionID, purchases)

	return &models.CheckoutResponse{
		Message:       "Purchase successful",
		TransactionID: transactionID,
		Items:         purchases,
	}, nil
}

func (s *purchaseService) GetPurchases(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {

	purchases, err := s.purchaseRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError("Failed to fetch purchases").WithError(err)
	}

	return groupByTransaction(purchases), nil
}

func (s *purchaseService) GetTransaction(ctx context.Context, userID uuid.UUID, transactionID string) (*models.Transaction, error) {

	purchases, err := s.purchaseRepo.ListByTransaction(ctx, userID, transactionID)
	if err != nil {
		return nil, apperrors.DatabaseError("Failed to fetch purchase").WithError(err)
	}

	if len(purchases) == 0 {
		return nil, apperrors.NotFoundError("Transaction not found")
	}

	return &models.Transaction{
		TransactionID: transactionID,
		Items:         purchases,
		PurchasedAt:   purchases[0].PurchasedAt,
	}, nil
}

// groupByTransaction reconstructs checkout groups from the flat ledger;
// groups are disjoint and their union is the full ledger. Each group's
// timestamp is that of its first entry.
func groupByTransaction(purchases []models.Purchase) []models.Transaction {

	transactions := []models.Transaction{}
	index := make(map[string]int)

	for _, purchase := range purchases {

		i, seen := index[purchase.TransactionID]
		if !seen {
			index[purchase.TransactionID] = len(transactions)
			transactions = append(transactions, models.Transaction{
				TransactionID: purchase.TransactionID,
				PurchasedAt:   purchase.PurchasedAt,
			})
			i = len(transactions) - 1
		}

		transactions[i].Items = append(transactions[i].Items, purchase)
	}

	return transactions
}

// sendReceipt is best-effort: a failed email never fails the checkout.
func (s *purchaseService) sendReceipt(ctx context.Context, userID uuid.UUID, transactionID string, purchases []models.Purchase) {

	if s.emailService == nil {
		return
	}

	logger := middleware.LoggerFromContext(ctx)

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		logger.Warn("Skipping receipt email, user lookup failed", slog.Any("error", err))
		return
	}

	content := fmt.Sprintf("Thanks for your order!\n\nTransaction %s:\n", transactionID)

	var total float64

	for _, purchase := range purchases {
		if purchase.Product == nil {
			continue
		}
		subtotal := purchase.Product.Price * float64(purchase.Quantity)
		content += fmt.Sprintf("  %d x %s = %.2f\n", purchase.Quantity, purchase.Product.Title, subtotal)
		total += subtotal
	}

	content += fmt.Sprintf("\nTotal: %.2f\n", total)

	req := &models.EmailNotificationRequest{
		To:      user.Email,
		Subject: "Your EcoFinds order " + transactionID,
		Content: content,
	}

	if err := s.emailService.Send(ctx, req); err != nil {
		logger.Warn("Failed to send receipt email", slog.String("transactionId", transactionID), slog.Any("error", err))
	}
}
