package jobs

import (
	"context"
	"time"

	"github.com/vuvuzela92/waregouse-project/internal/marketplace"
	"github.com/vuvuzela92/waregouse-project/internal/schema"
)

// RunSupplies loads every supply of every account.
func (r *Runner) RunSupplies(ctx context.Context) error {
	return r.forEachAccount(ctx, Supplies, func(ctx context.Context, acct marketplace.Account) error {
		var supplies []marketplace.Supply
		err := r.step(Supplies, "list_supplies", func() error {
			var err error
			supplies, err = r.api.ListSupplies(ctx, acct)
			return err
		})
		if err != nil {
			return err
		}
		return r.load(ctx, Supplies, acct.Name, SuppliesContract, SupplyRows(supplies, r.now()))
	})
}

// SupplyRows stamps each supply with the load time.
func SupplyRows(supplies []marketplace.Supply, loadedAt time.Time) schema.Batch {
	batch := make(schema.Batch, 0, len(supplies))
	for _, s := range supplies {
		batch = append(batch, schema.Row{
			"closed_at":             timeOrNull(s.ClosedAt),
			"scan_dt":               timeOrNull(s.ScanDt),
			"reject_dt":             timeOrNull(s.RejectDt),
			"destination_office_id": schema.Int(s.DestinationOfficeID),
			"id":                    schema.String(s.ID),
			"name":                  textOrNull(s.Name),
			"created_at":            timeOrNull(s.CreatedAt),
			"cargo_type":            schema.Int(int64(s.CargoType)),
			"done":                  schema.Bool(s.Done),
			"account":               schema.String(s.Account),
			"created_at_db":         schema.Time(loadedAt.UTC()),
		})
	}
	return batch
}

// RunReshipments loads the orders awaiting reshipment, dated today.
func (r *Runner) RunReshipments(ctx context.Context) error {
	return r.forEachAccount(ctx, Reshipments, func(ctx context.Context, acct marketplace.Account) error {
		var orders []marketplace.Reshipment
		err := r.step(Reshipments, "list_reshipments", func() error {
			var err error
			orders, err = r.api.ReshipmentOrders(ctx, acct)
			return err
		})
		if err != nil {
			return err
		}
		return r.load(ctx, Reshipments, acct.Name, ReshipmentsContract, ReshipmentRows(orders, r.now()))
	})
}

// ReshipmentRows stamps each order with the Moscow date of now.
func ReshipmentRows(orders []marketplace.Reshipment, now time.Time) schema.Batch {
	day := schema.Time(dateOf(now.In(moscow)))
	batch := make(schema.Batch, 0, len(orders))
	for _, o := range orders {
		batch = append(batch, schema.Row{
			"supply_id": textOrNull(o.SupplyID),
			"order_id":  schema.Int(o.OrderID),
			"date":      day,
			"account":   schema.String(o.Account),
		})
	}
	return batch
}

func timeOrNull(t *time.Time) schema.Value {
	if t == nil || t.IsZero() {
		return schema.Null()
	}
	return schema.Time(t.UTC())
}
