package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// ProductID accepts both string and numeric product identifiers.
type ProductID string

func (p *ProductID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = ProductID(n.String())
	return nil
}

// Balance is a product's stock on one warehouse.
type Balance struct {
	ProductID         ProductID `json:"product_id"`
	WarehouseID       int64     `json:"warehouse_id"`
	PhysicalQuantity  int64     `json:"physical_quantity"`
	AvailableQuantity int64     `json:"available_quantity"`
}

// ReserveByType is the reserved quantity for one delivery scheme.
type ReserveByType struct {
	ReserveType    string `json:"reserve_type"`
	CurrentReserve int64  `json:"current_reserve"`
}

// Reserve lists a product's reserves per delivery scheme.
type Reserve struct {
	ProductID        ProductID       `json:"product_id"`
	DeliveryTypeData []ReserveByType `json:"delivery_type_data"`
}

// Balances returns current balances for every product and warehouse.
func (c *Client) Balances(ctx context.Context) ([]Balance, error) {
	var out []Balance
	err := c.do(ctx, call{
		group:    GroupStock,
		endpoint: "stock_balances",
		method:   http.MethodGet,
		url:      join(c.opts.StockURL, "/api/warehouse_and_balances/get_all_product_current_balances"),
	}, &out)
	return out, err
}

// Reserves returns summed reserves per product.
func (c *Client) Reserves(ctx context.Context) ([]Reserve, error) {
	var out []Reserve
	err := c.do(ctx, call{
		group:    GroupStock,
		endpoint: "stock_reserves",
		method:   http.MethodGet,
		url:      join(c.opts.StockURL, "/api/shipment_of_goods/summ_reserve_data"),
	}, &out)
	return out, err
}
