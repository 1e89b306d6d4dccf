// Package suggest ranks up-sell candidates from products that were ordered
// together in recent history.
package suggest

import (
	"sort"

	"github.com/scoopcreamy/ninjapos/internal/order"
)

// Matrix holds symmetric pair counts: m[a][b] is the number of orders that
// contained both a and b.
type Matrix map[string]map[string]int

type Scored struct {
	ProductID string `json:"productId"`
	Count     int    `json:"count"`
}

// Build groups items by order and counts every ordered pair of distinct
// products. A product listed twice in one order is counted once.
func Build(history []order.Item) Matrix {
	byOrder := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, it := range history {
		if seen[it.OrderID] == nil {
			seen[it.OrderID] = make(map[string]bool)
		}
		if seen[it.OrderID][it.ProductID] {
			continue
		}
		seen[it.OrderID][it.ProductID] = true
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it.ProductID)
	}

	m := make(Matrix)
	for _, products := range byOrder {
		for _, a := range products {
			for _, b := range products {
				if a == b {
					continue
				}
				if m[a] == nil {
					m[a] = make(map[string]int)
				}
				m[a][b]++
			}
		}
	}
	return m
}

// Top sums the pair counts of every cart product and returns the n best
// candidates not already in the cart. n <= 0 returns the full ranking.
// Equal counts are ordered by product id.
func (m Matrix) Top(cartIDs []string, n int) []Scored {
	inCart := make(map[string]bool, len(cartIDs))
	for _, id := range cartIDs {
		inCart[id] = true
	}

	totals := make(map[string]int)
	for id := range inCart {
		for other, count := range m[id] {
			if inCart[other] {
				continue
			}
			totals[other] += count
		}
	}

	out := make([]Scored, 0, len(totals))
	for id, count := range totals {
		out = append(out, Scored{ProductID: id, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ProductID < out[j].ProductID
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
