package services

import (
	"context"

	"github.com/storefront/commerce-backend/models"
	"github.com/storefront/commerce-backend/repository"
	"go.uber.org/zap"
)

// CartService owns all cart mutations. Every write goes through the
// repository's Save, which recomputes the derived total in the same
// operation.
type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	logger      *zap.Logger
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, logger *zap.Logger) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		logger:      logger,
	}
}

// Get returns the user's cart, creating an empty one on first access.
func (s *CartService) Get(ctx context.Context, userID string) (*models.Cart, error) {
	return s.cartRepo.Get(ctx, userID)
}

// AddItem puts quantity units of a product into the cart, snapshotting the
// product's current price and name. Adding a product already in the cart
// increments its quantity instead of creating a second line.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, &ValidationError{Message: "quantity must be at least 1"}
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	// Display-time check only; placement re-checks atomically.
	if product.Stock < quantity {
		return nil, &StockError{ProductID: productID, ProductName: product.Name}
	}

	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	found := false
	for i, item := range cart.Items {
		if item.ProductID == productID {
			cart.Items[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		cart.Items = append(cart.Items, models.CartItem{
			ProductID: productID,
			Quantity:  quantity,
			Price:     product.Price,
			Name:      product.Name,
		})
	}

	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateQuantity sets the quantity of a cart line. Quantity zero removes the
// line. The snapshot price and name are kept as they were at add time.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, &ValidationError{Message: "quantity must not be negative"}
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, item := range cart.Items {
		if item.ProductID == productID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, repository.ErrNotFound
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Stock < quantity {
		return nil, &StockError{ProductID: productID, ProductName: product.Name}
	}

	cart.Items[idx].Quantity = quantity

	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem drops a product's line from the cart. Removing a product that
// is not in the cart is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*models.Cart, error) {
	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			items = append(items, item)
		}
	}
	cart.Items = items

	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Clear empties the cart, leaving the document in place.
func (s *CartService) Clear(ctx context.Context, userID string) (*models.Cart, error) {
	if err := s.cartRepo.Clear(ctx, userID); err != nil {
		return nil, err
	}
	return s.cartRepo.Get(ctx, userID)
}
