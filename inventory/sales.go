package inventory

import (
	"context"
)

// SaleLedger reads recorded sales. Sales are only written by the Allocator.
type SaleLedger struct {
	Store TxStore
}

func NewSaleLedger(store TxStore) *SaleLedger {
	return &SaleLedger{Store: store}
}

// ListSales returns sales newest first with allocations and retailer loaded.
func (l *SaleLedger) ListSales(ctx context.Context) ([]Sale, error) {
	return l.Store.ListSales(ctx)
}

func (l *SaleLedger) GetSale(ctx context.Context, id SaleID) (*Sale, error) {
	s, err := l.Store.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &NotFoundError{Entity: "sale", ID: string(id)}
	}
	return s, nil
}
