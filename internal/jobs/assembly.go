package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/vuvuzela92/waregouse-project/internal/marketplace"
	"github.com/vuvuzela92/waregouse-project/internal/schema"
)

// moscow is the business time zone. It has had no DST since 2014, so the
// fixed offset is exact when tzdata is missing.
var moscow = func() *time.Location {
	if loc, err := time.LoadLocation("Europe/Moscow"); err == nil {
		return loc
	}
	return time.FixedZone("MSK", 3*60*60)
}()

var localVendorCodeRe = regexp.MustCompile(`wild\d+`)

// RunAssembly loads assembly tasks joined with their current statuses.
func (r *Runner) RunAssembly(ctx context.Context) error {
	return r.forEachAccount(ctx, Assembly, r.assemblyForAccount)
}

func (r *Runner) assemblyForAccount(ctx context.Context, acct marketplace.Account) error {
	var orders []marketplace.Order
	err := r.step(Assembly, "list_orders", func() error {
		var err error
		orders, err = r.api.ListOrders(ctx, acct)
		return err
	})
	if err != nil {
		return err
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	var statuses []marketplace.OrderStatus
	err = r.step(Assembly, "order_statuses", func() error {
		var err error
		statuses, err = r.api.OrderStatuses(ctx, acct, ids)
		return err
	})
	if err != nil {
		return err
	}

	return r.load(ctx, Assembly, acct.Name, AssemblyContract, AssemblyRows(orders, statuses))
}

// AssemblyRows left-joins orders with statuses on (id, account).
func AssemblyRows(orders []marketplace.Order, statuses []marketplace.OrderStatus) schema.Batch {
	type key struct {
		id      int64
		account string
	}
	byKey := make(map[key]marketplace.OrderStatus, len(statuses))
	for _, s := range statuses {
		byKey[key{s.ID, s.Account}] = s
	}

	batch := make(schema.Batch, 0, len(orders))
	for _, o := range orders {
		row := orderRow(o)
		if s, ok := byKey[key{o.ID, o.Account}]; ok {
			row["supplier_status"] = textOrNull(s.SupplierStatus)
			row["wb_status"] = textOrNull(s.WBStatus)
		} else {
			row["supplier_status"] = schema.Null()
			row["wb_status"] = schema.Null()
		}
		batch = append(batch, row)
	}
	return batch
}

func orderRow(o marketplace.Order) schema.Row {
	row := schema.Row{
		"nm_id":                   schema.Int(o.NmID),
		"local_vendor_code":       textOrNull(localVendorCodeRe.FindString(o.Article)),
		"vendor_code":             textOrNull(o.Article),
		"id":                      schema.Int(o.ID),
		"supply_id":               textOrNull(o.SupplyID),
		"address":                 rawText(o.Address, false),
		"scan_price":              schema.Null(),
		"price":                   schema.Decimal(float64(o.Price) / 100),
		"converted_price":         schema.Decimal(float64(o.ConvertedPrice) / 100),
		"comment":                 textOrNull(o.Comment),
		"delivery_type":           textOrNull(o.DeliveryType),
		"order_uid":               textOrNull(o.OrderUID),
		"color_code":              textOrNull(o.ColorCode),
		"rid":                     textOrNull(o.Rid),
		"offices":                 listText(o.Offices),
		"skus":                    listText(o.Skus),
		"warehouse_id":            schema.Int(o.WarehouseID),
		"chrt_id":                 schema.Int(o.ChrtID),
		"currency_code":           schema.Int(int64(o.CurrencyCode)),
		"converted_currency_code": schema.Int(int64(o.ConvertedCurrencyCode)),
		"cargo_type":              schema.Int(int64(o.CargoType)),
		"is_zero_order":           schema.Bool(o.IsZeroOrder),
		"options":                 rawText(o.Options, true),
		"office_id":               schema.Int(o.OfficeID),
		"account":                 schema.String(o.Account),
	}
	if o.ScanPrice != nil {
		row["scan_price"] = schema.Decimal(*o.ScanPrice)
	}
	if o.CreatedAt.IsZero() {
		row["created_at"] = schema.Null()
		row["created_at_msk"] = schema.Null()
		row["date"] = schema.Null()
	} else {
		msk := o.CreatedAt.In(moscow)
		row["created_at"] = schema.Time(o.CreatedAt.UTC())
		row["created_at_msk"] = schema.Time(msk)
		row["date"] = schema.Time(dateOf(msk))
	}
	return row
}

// dateOf returns t's calendar date as midnight UTC.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func textOrNull(s string) schema.Value {
	if s == "" {
		return schema.Null()
	}
	return schema.String(s)
}

// listText flattens a list to "a, b"; an empty list is null.
func listText(items []string) schema.Value {
	if len(items) == 0 {
		return schema.Null()
	}
	return schema.String(strings.Join(items, ", "))
}

// rawText stores a JSON value as text. Strings are unquoted; with
// stripBraces an object loses its outer braces.
func rawText(raw json.RawMessage, stripBraces bool) schema.Value {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return schema.Null()
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return textOrNull(s)
	}
	text := string(raw)
	if stripBraces {
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(text, "{"), "}"))
	}
	return textOrNull(text)
}
