// Package services – inventory reduction for the online commit path.
//
// Sending an order to the kitchen consumes raw materials: each line item maps
// through its finished good's bill of materials to a set of raw ingredient
// reductions. The arithmetic lives in a pure function so it can be tested
// without a backend; applying it is a read-modify-write against the stock
// endpoints, serialized by the backend itself.
//
// The offline path never touches stock. Mutating shared inventory without
// server confirmation is unsafe, so offline orders are flagged for a manual
// inventory follow-up instead.
package services

import (
	"context"

	"github.com/looppos/terminal-sync/internal/client"
	"github.com/looppos/terminal-sync/internal/domain"
)

// ComputeReductions maps order lines through the finished goods' ingredient
// lists and returns the total quantity to deduct per raw material id. Items
// without a matching finished good contribute nothing.
func ComputeReductions(items []domain.LineItem, goods []client.FinishedGood) map[string]float64 {
	byID := make(map[string]client.FinishedGood, len(goods))
	for _, g := range goods {
		byID[g.ID.String()] = g
	}

	reductions := make(map[string]float64)
	for _, it := range items {
		g, ok := byID[it.ID]
		if !ok {
			continue
		}
		for _, ing := range g.RawIngredients {
			reductions[ing.RawID] += ing.RawConsume * float64(it.Quantity)
		}
	}
	return reductions
}

// ApplyReductions subtracts reductions from the stock list, clamped at a
// floor of zero, and returns the updated list. Input order is preserved.
func ApplyReductions(stock []client.StockItem, reductions map[string]float64) []client.StockItem {
	out := make([]client.StockItem, len(stock))
	copy(out, stock)
	for i := range out {
		if r, ok := reductions[out[i].RawID]; ok && r > 0 {
			out[i].Quantity -= r
			if out[i].Quantity < 0 {
				out[i].Quantity = 0
			}
		}
	}
	return out
}

// decrementStock performs the full online inventory step: read finished
// goods and stock, compute and apply reductions, write back. Any failure is
// surfaced to the caller; a partially completed online commit is a
// reportable error, never a silent fallback to offline (queueing the order
// after the stock write would double-decrement during a later drain).
func (s *SyncService) decrementStock(ctx context.Context, items []domain.LineItem) error {
	goods, err := s.Remote.FinishedGoods(ctx)
	if err != nil {
		return err
	}
	stock, err := s.Remote.StockLevels(ctx)
	if err != nil {
		return err
	}
	reductions := ComputeReductions(items, goods)
	if len(reductions) == 0 {
		return nil
	}
	return s.Remote.UpdateStock(ctx, ApplyReductions(stock, reductions))
}
