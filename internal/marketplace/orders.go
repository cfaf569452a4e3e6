package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

const (
	ordersPageSize = 1000
	// MaxStatusBatch is the largest number of order ids per status request.
	MaxStatusBatch = 1000
)

// Order is an assembly task (FBS order) as returned by the marketplace.
// Prices are in kopecks.
type Order struct {
	ID                    int64           `json:"id"`
	OrderUID              string          `json:"orderUid"`
	Rid                   string          `json:"rid"`
	Article               string          `json:"article"`
	NmID                  int64           `json:"nmId"`
	ChrtID                int64           `json:"chrtId"`
	ColorCode             string          `json:"colorCode"`
	SupplyID              string          `json:"supplyId"`
	Address               json.RawMessage `json:"address"`
	Comment               string          `json:"comment"`
	DeliveryType          string          `json:"deliveryType"`
	ScanPrice             *float64        `json:"scanPrice"`
	Price                 int64           `json:"price"`
	ConvertedPrice        int64           `json:"convertedPrice"`
	CurrencyCode          int             `json:"currencyCode"`
	ConvertedCurrencyCode int             `json:"convertedCurrencyCode"`
	CargoType             int             `json:"cargoType"`
	IsZeroOrder           bool            `json:"isZeroOrder"`
	CreatedAt             time.Time       `json:"createdAt"`
	WarehouseID           int64           `json:"warehouseId"`
	OfficeID              int64           `json:"officeId"`
	Offices               []string        `json:"offices"`
	Skus                  []string        `json:"skus"`
	Options               json.RawMessage `json:"options"`

	// Account is stamped by the client.
	Account string `json:"-"`
}

// OrderStatus is the supplier-side and marketplace-side status of an order.
type OrderStatus struct {
	ID             int64  `json:"id"`
	SupplierStatus string `json:"supplierStatus"`
	WBStatus       string `json:"wbStatus"`
	Account        string `json:"-"`
}

// ListOrders walks the order cursor from the start until next is zero or a
// page comes back empty.
func (c *Client) ListOrders(ctx context.Context, acct Account) ([]Order, error) {
	var all []Order
	var next int64
	for {
		var page struct {
			Next   int64   `json:"next"`
			Orders []Order `json:"orders"`
		}
		err := c.do(ctx, call{
			group:    GroupMarketplace,
			endpoint: "orders",
			account:  acct,
			method:   http.MethodGet,
			url:      join(c.opts.MarketplaceURL, "/api/v3/orders"),
			query: map[string]string{
				"limit": strconv.Itoa(ordersPageSize),
				"next":  strconv.FormatInt(next, 10),
			},
		}, &page)
		if err != nil {
			return all, err
		}
		for i := range page.Orders {
			page.Orders[i].Account = acct.Name
		}
		all = append(all, page.Orders...)
		if page.Next == 0 || len(page.Orders) == 0 {
			return all, nil
		}
		next = page.Next
	}
}

// OrderStatuses fetches statuses for ids in chunks of MaxStatusBatch.
func (c *Client) OrderStatuses(ctx context.Context, acct Account, ids []int64) ([]OrderStatus, error) {
	var all []OrderStatus
	for start := 0; start < len(ids); start += MaxStatusBatch {
		end := min(start+MaxStatusBatch, len(ids))
		var resp struct {
			Orders []OrderStatus `json:"orders"`
		}
		err := c.do(ctx, call{
			group:    GroupMarketplace,
			endpoint: "orders_status",
			account:  acct,
			method:   http.MethodPost,
			url:      join(c.opts.MarketplaceURL, "/api/v3/orders/status"),
			body:     map[string]any{"orders": ids[start:end]},
		}, &resp)
		if err != nil {
			return all, err
		}
		for i := range resp.Orders {
			resp.Orders[i].Account = acct.Name
		}
		all = append(all, resp.Orders...)
	}
	return all, nil
}
