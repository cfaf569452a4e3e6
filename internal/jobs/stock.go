package jobs

import (
	"context"
	"time"

	"github.com/vuvuzela92/waregouse-project/internal/marketplace"
	"github.com/vuvuzela92/waregouse-project/internal/schema"
)

// MainWarehouseID is the warehouse whose balances are snapshotted.
const MainWarehouseID = 1

// Reserve types reported by the stock service.
const (
	ReserveFBO = "ФБО"
	ReserveFBS = "ФБС"
)

// RunStock snapshots main-warehouse balances together with FBO and FBS
// reserves. The stock service is account-agnostic.
func (r *Runner) RunStock(ctx context.Context) error {
	var (
		balances []marketplace.Balance
		reserves []marketplace.Reserve
	)
	err := r.step(Stock, "balances", func() error {
		var err error
		balances, err = r.api.Balances(ctx)
		return err
	})
	if err != nil {
		return err
	}
	err = r.step(Stock, "reserves", func() error {
		var err error
		reserves, err = r.api.Reserves(ctx)
		return err
	})
	if err != nil {
		return err
	}
	return r.load(ctx, Stock, "", StockContract, StockRows(balances, reserves, r.now()))
}

// StockRows keeps main-warehouse balances and attaches summed reserves per
// product. Products without reserves get zero.
func StockRows(balances []marketplace.Balance, reserves []marketplace.Reserve, at time.Time) schema.Batch {
	type sums struct{ fbo, fbs int64 }
	byProduct := make(map[marketplace.ProductID]sums, len(reserves))
	for _, res := range reserves {
		s := byProduct[res.ProductID]
		for _, d := range res.DeliveryTypeData {
			switch d.ReserveType {
			case ReserveFBO:
				s.fbo += d.CurrentReserve
			case ReserveFBS:
				s.fbs += d.CurrentReserve
			}
		}
		byProduct[res.ProductID] = s
	}

	day := schema.Time(dateOf(at.In(moscow)))
	stamp := schema.Time(at.UTC())
	var batch schema.Batch
	for _, b := range balances {
		if b.WarehouseID != MainWarehouseID {
			continue
		}
		s := byProduct[b.ProductID]
		batch = append(batch, schema.Row{
			"product_id":         schema.String(string(b.ProductID)),
			"physical_quantity":  schema.Int(b.PhysicalQuantity),
			"available_quantity": schema.Int(b.AvailableQuantity),
			"fbo_reserve":        schema.Int(s.fbo),
			"fbs_reserve":        schema.Int(s.fbs),
			"snapshot_date":      day,
			"snapshot_at":        stamp,
		})
	}
	return batch
}
