package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ecofinds/marketplace/internal/models"
	"github.com/ecofinds/marketplace/internal/utils"
	"github.com/google/uuid"
)

type ProductRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type productRepository struct {
	DB *sql.DB
}

func NewProductRepo(db *sql.DB) ProductRepository {
	return &productRepository{DB: db}
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO products (id, title, description, category, price, image, stock, seller_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query,
		product.ID, product.Title, product.Description, product.Category,
		product.Price, product.Image, nullableStock(product.Stock), product.SellerID,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
}

func (r *productRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, title, description, category, price, image, stock, seller_id, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	product, err := scanProduct(r.DB.QueryRowContext(dbCtx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("querying database: %w", err)
	}

	return product, nil
}

// ListProducts applies an optional case-insensitive title substring match and
// an optional exact category match; empty filter fields are ignored.
func (r *productRepository) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, title, description, category, price, image, stock, seller_id, created_at, updated_at
		FROM products
		WHERE ($1 = '' OR title ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR category = $2)
		ORDER BY created_at DESC
	`

	rows, err := r.DB.QueryContext(dbCtx, query, filter.Keyword, filter.Category)
	if err != nil {
		return nil, fmt.Errorf("querying database: %w", err)
	}

	defer rows.Close()

	var products []*models.Product

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}

		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE products
		SET title = $1, description = $2, category = $3, price = $4, image = $5, stock = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at
	`

	err := r.DB.QueryRowContext(dbCtx, query,
		product.Title, product.Description, product.Category,
		product.Price, product.Image, nullableStock(product.Stock), product.ID,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	return nil
}

// DeleteProduct removes the listing and, in the same transaction, drops its
// line from every cart so no cart ever references a vanished product. Ledger
// entries keep the product id; purchase reads tolerate the missing row.
func (r *productRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(dbCtx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get deleted rows: %w", err)
	}

	if deleted == 0 {
		return sql.ErrNoRows
	}

	_, err = tx.ExecContext(dbCtx, `
		UPDATE carts
		SET items = items - $1::text, updated_at = NOW()
		WHERE items ? $1::text
	`, id.String())
	if err != nil {
		return fmt.Errorf("failed to remove product from carts: %w", err)
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {

	product := &models.Product{}

	var stock sql.NullInt64

	err := row.Scan(&product.ID, &product.Title, &product.Description, &product.Category,
		&product.Price, &product.Image, &stock, &product.SellerID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if stock.Valid {
		s := int(stock.Int64)
		product.Stock = &s
	}

	return product, nil
}

func nullableStock(stock *int) sql.NullInt64 {
	if stock == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: int64(*stock), Valid: true}
}
