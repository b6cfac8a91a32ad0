package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/ecofinds/marketplace/internal/errors"
	"github.com/ecofinds/marketplace/internal/models"
	repository "github.com/ecofinds/marketplace/internal/repositories"
	"github.com/google/uuid"
)

type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.CartView, error)
	AddItem(ctx context.Context, userID uuid.UUID, req *models.AddItemRequest) (*models.CartView, error)
	UpdateQuantity(ctx context.Context, userID uuid.UUID, productID uuid.UUID, quantity int) (*models.CartView, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, productID uuid.UUID) (*models.CartView, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) CartService {
	return &cartService{cartRepo: cartRepo, productRepo: productRepo}
}

func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.CartView, error) {

	cart, err := s.cartRepo.GetCartByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// no cart yet is an empty cart, not an error
			return &models.CartView{Products: []models.CartLine{}}, nil
		}
		return nil, apperrors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	return s.buildView(ctx, cart)
}

// AddItem adds quantity to any existing line for the product; the resulting
// quantity dropping to zero or below removes the line. A zero request
// quantity means "unspecified" and defaults to 1.
func (s *cartService) AddItem(ctx context.Context, userID uuid.UUID, req *models.AddItemRequest) (*models.CartView, error) {

	product, err := s.productRepo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("Product not found").WithError(err)
		}
		return nil, apperrors.DatabaseError("Failed to retrieve product").WithError(err)
	}

	qtyToAdd := req.Quantity
	if qtyToAdd == 0 {
		qtyToAdd = 1
	}

	if product.Stock != nil && qtyToAdd > *product.Stock {
		return nil, apperrors.ValidationError(fmt.Sprintf("Cannot add more than %d items", *product.Stock))
	}

	cart, err := s.cartRepo.GetCartByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.DatabaseError("Failed to retrieve cart").WithError(err)
		}

		// created lazily on first add
		cart = &models.Cart{
			ID:        uuid.New(),
			UserID:    userID,
			Items:     make(map[string]models.CartItem),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		if err := s.cartRepo.CreateCart(ctx, cart); err != nil {
			return nil, apperrors.DatabaseError("Failed to create cart").WithError(err)
		}
	}

	key := req.ProductID.String()

	if item, exists := cart.Items[key]; exists {
		item.Quantity += qtyToAdd
		if item.Quantity <= 0 {
			delete(cart.Items, key)
		} else {
			cart.Items[key] = item
		}
	} else if qtyToAdd > 0 {
		cart.Items[key] = models.CartItem{ProductID: req.ProductID, Quantity: qtyToAdd}
	}

	cart.UpdatedAt = time.Now()

	if err := s.cartRepo.UpdateCart(ctx, cart); err != nil {
		return nil, apperrors.DatabaseError("Failed to update cart").WithError(err)
	}

	return s.buildView(ctx, cart)
}

// UpdateQuantity sets (not adds) the line's quantity; zero or below removes
// the line.
func (s *cartService) UpdateQuantity(ctx context.Context, userID uuid.UUID, productID uuid.UUID, quantity int) (*models.CartView, error) {

	cart, err := s.cartRepo.GetCartByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("Cart not found").WithError(err)
		}
		return nil, apperrors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	key := productID.String()

	item, exists := cart.Items[key]
	if !exists {
		return nil, apperrors.NotFoundError("Product not in cart")
	}

	product, err := s.productRepo.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("Product not found").WithError(err)
		}
		return nil, apperrors.DatabaseError("Failed to retrieve product").WithError(err)
	}

	if product.Stock != nil && quantity > *product.Stock {
		return nil, apperrors.ValidationError(fmt.Sprintf("Cannot set quantity more than %d", *product.Stock))
	}

	if quantity <= 0 {
		delete(cart.Items, key)
	} else {
		item.Quantity = quantity
		cart.Items[key] = item
	}

	cart.UpdatedAt = time.Now()

	if err := s.cartRepo.UpdateCart(ctx, cart); err != nil {
		return nil, apperrors.DatabaseError("Failed to update cart").WithError(err)
	}

	return s.buildView(ctx, cart)
}

// RemoveItem is idempotent: removing an absent line succeeds.
func (s *cartService) RemoveItem(ctx context.Context, userID uuid.UUID, productID uuid.UUID) (*models.CartView, error) {

	cart, err := s.cartRepo.GetCartByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("Cart not found").WithError(err)
		}
		return nil, apperrors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	delete(cart.Items, productID.String())

	cart.UpdatedAt = time.Now()

	if err := s.cartRepo.UpdateCart(ctx, cart); err != nil {
		return nil, apperrors.DatabaseError("Failed to update cart").WithError(err)
	}

	return s.buildView(ctx, cart)
}

// buildView joins cart lines with current product records and computes the
// total. Lines whose product no longer exists are skipped rather than failing
// the whole view.
func (s *cartService) buildView(ctx context.Context, cart *models.Cart) (*models.CartView, error) {

	view := &models.CartView{Products: []models.CartLine{}}

	for _, item := range cart.Items {

		product, err := s.productRepo.GetProductByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, apperrors.DatabaseError("Failed to retrieve product").WithError(err)
		}

		line := models.CartLine{
			Product:  product,
			Quantity: item.Quantity,
			Subtotal: product.Price * float64(item.Quantity),
		}

		view.Products = append(view.Products, line)
		view.TotalPrice += line.Subtotal
	}

	return view, nil
}
