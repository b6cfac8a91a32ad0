package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ecofinds/marketplace/internal/models"
	"github.com/ecofinds/marketplace/internal/utils"
	"github.com/google/uuid"
)

// ErrInsufficientStock is returned when a checkout's conditional stock
// decrement matches no row: the product vanished or its tracked stock fell
// below the requested quantity since validation.
var ErrInsufficientStock = errors.New("insufficient stock")

type PurchaseRepository interface {
	RecordCheckout(ctx context.Context, userID uuid.UUID, transactionID string, items []models.CartItem, purchasedAt time.Time) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error)
	ListByTransaction(ctx context.Context, userID uuid.UUID, transactionID string) ([]models.Purchase, error)
}

type purchaseRepository struct {
	DB *sql.DB
}

func NewPurchaseRepo(db *sql.DB) PurchaseRepository {
	return &purchaseRepository{DB: db}
}

// RecordCheckout runs the whole checkout in one database transaction: the
// conditional stock decrement per line, the ledger inserts, and the cart
// clear. A concurrent checkout can never drive tracked stock negative, and a
// failure at any point rolls everything back.
func (r *purchaseRepository) RecordCheckout(ctx context.Context, userID uuid.UUID, transactionID string, items []models.CartItem, purchasedAt time.Time) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	decrementQuery := `
		UPDATE products
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND (stock IS NULL OR stock >= $1)
	`

	insertQuery := `
		INSERT INTO purchases (id, user_id, product_id, quantity, transaction_id, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, item := range items {

		result, err := tx.ExecContext(dbCtx, decrementQuery, item.Quantity, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}

		updated, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get updated rows: %w", err)
		}

		if updated == 0 {
			return fmt.Errorf("%w: product %s", ErrInsufficientStock, item.ProductID)
		}

		_, err = tx.ExecContext(dbCtx, insertQuery, uuid.New(), userID, item.ProductID, item.Quantity, transactionID, purchasedAt)
		if err != nil {
			return fmt.Errorf("failed to insert purchase: %w", err)
		}

	}

	_, err = tx.ExecContext(dbCtx, `UPDATE carts SET items = '{}'::jsonb, updated_at = NOW() WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return tx.Commit()
}

func (r *purchaseRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := purchaseSelect + `
		WHERE pu.user_id = $1
		ORDER BY pu.purchased_at, pu.id
	`

	return r.queryPurchases(dbCtx, query, userID)
}

func (r *purchaseRepository) ListByTransaction(ctx context.Context, userID uuid.UUID, transactionID string) ([]models.Purchase, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := purchaseSelect + `
		WHERE pu.user_id = $1 AND pu.transaction_id = $2
		ORDER BY pu.purchased_at, pu.id
	`

	return r.queryPurchases(dbCtx, query, userID, transactionID)
}

// LEFT JOIN keeps ledger entries readable after their product is deleted.
const purchaseSelect = `
		SELECT pu.id, pu.user_id, pu.product_id, pu.quantity, pu.transaction_id, pu.purchased_at,
		       pr.id, pr.title, pr.description, pr.category, pr.price, pr.image, pr.stock,
		       pr.seller_id, pr.created_at, pr.updated_at
		FROM purchases pu
		LEFT JOIN products pr ON pu.product_id = pr.id
`

func (r *purchaseRepository) queryPurchases(ctx context.Context, query string, args ...any) ([]models.Purchase, error) {

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying database: %w", err)
	}

	defer rows.Close()

	var purchases []models.Purchase

	for rows.Next() {

		var purchase models.Purchase

		var (
			prodID      sql.NullString
			title       sql.NullString
			description sql.NullString
			category    sql.NullString
			price       sql.NullFloat64
			image       sql.NullString
			stock       sql.NullInt64
			sellerID    sql.NullString
			createdAt   sql.NullTime
			updatedAt   sql.NullTime
		)

		err := rows.Scan(&purchase.ID, &purchase.UserID, &purchase.ProductID, &purchase.Quantity,
			&purchase.TransactionID, &purchase.PurchasedAt,
			&prodID, &title, &description, &category, &price, &image, &stock,
			&sellerID, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}

		if prodID.Valid {

			product := &models.Product{
				Title:       title.String,
				Description: description.String,
				Category:    category.String,
				Price:       price.Float64,
				Image:       image.String,
				CreatedAt:   createdAt.Time,
				UpdatedAt:   updatedAt.Time,
			}

			if product.ID, err = uuid.Parse(prodID.String); err != nil {
				return nil, fmt.Errorf("invalid product id in ledger join: %w", err)
			}

			if sellerID.Valid {
				if product.SellerID, err = uuid.Parse(sellerID.String); err != nil {
					return nil, fmt.Errorf("invalid seller id in ledger join: %w", err)
				}
			}

			if stock.Valid {
				s := int(stock.Int64)
				product.Stock = &s
			}

			purchase.Product = product

		}

		purchases = append(purchases, purchase)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return purchases, nil
}
