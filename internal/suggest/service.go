package suggest

import (
	"context"
	"errors"
	"fmt"

	"github.com/scoopcreamy/ninjapos/internal/cart"
	"github.com/scoopcreamy/ninjapos/internal/catalog"
	"github.com/scoopcreamy/ninjapos/internal/order"
)

const (
	DefaultHistory = 500
	DefaultLimit   = 5
)

type ItemSource interface {
	RecentItems(ctx context.Context, limit int) ([]order.Item, error)
}

type Products interface {
	Get(ctx context.Context, productID string) (cart.Product, error)
}

type Suggestion struct {
	Product cart.Product `json:"product"`
	Count   int          `json:"count"`
}

type Service struct {
	items    ItemSource
	products Products
	history  int
	limit    int
}

func NewService(items ItemSource, products Products, history, limit int) *Service {
	if history <= 0 {
		history = DefaultHistory
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{items: items, products: products, history: history, limit: limit}
}

// ForCart recomputes the matrix from the most recent items on every call.
// Products that left the catalog are skipped.
func (s *Service) ForCart(ctx context.Context, cartIDs []string) ([]Suggestion, error) {
	if len(cartIDs) == 0 {
		return []Suggestion{}, nil
	}

	history, err := s.items.RecentItems(ctx, s.history)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	out := make([]Suggestion, 0, s.limit)
	for _, scored := range Build(history).Top(cartIDs, 0) {
		p, err := s.products.Get(ctx, scored.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Suggestion{Product: p, Count: scored.Count})
		if len(out) == s.limit {
			break
		}
	}
	return out, nil
}
