package marketplace

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

const suppliesPageSize = 1000

// Supply is an FBS supply.
type Supply struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Done                bool       `json:"done"`
	CargoType           int        `json:"cargoType"`
	DestinationOfficeID int64      `json:"destinationOfficeId"`
	CreatedAt           *time.Time `json:"createdAt"`
	ClosedAt            *time.Time `json:"closedAt"`
	ScanDt              *time.Time `json:"scanDt"`
	RejectDt            *time.Time `json:"rejectDt"`
	Account             string     `json:"-"`
}

// Reshipment is an order that has to be shipped again.
type Reshipment struct {
	SupplyID string `json:"supplyId"`
	OrderID  int64  `json:"orderId"`
	Account  string `json:"-"`
}

// ListSupplies walks the supplies cursor until next is zero or a page is
// empty.
func (c *Client) ListSupplies(ctx context.Context, acct Account) ([]Supply, error) {
	var all []Supply
	var next int64
	for {
		var page struct {
			Next     int64    `json:"next"`
			Supplies []Supply `json:"supplies"`
		}
		err := c.do(ctx, call{
			group:    GroupMarketplace,
			endpoint: "supplies",
			account:  acct,
			method:   http.MethodGet,
			url:      join(c.opts.MarketplaceURL, "/api/v3/supplies"),
			query: map[string]string{
				"limit": strconv.Itoa(suppliesPageSize),
				"next":  strconv.FormatInt(next, 10),
			},
		}, &page)
		if err != nil {
			return all, err
		}
		for i := range page.Supplies {
			page.Supplies[i].Account = acct.Name
		}
		all = append(all, page.Supplies...)
		if page.Next == 0 || len(page.Supplies) == 0 {
			return all, nil
		}
		next = page.Next
	}
}

// ReshipmentOrders lists orders awaiting reshipment.
func (c *Client) ReshipmentOrders(ctx context.Context, acct Account) ([]Reshipment, error) {
	var resp struct {
		Orders []Reshipment `json:"orders"`
	}
	err := c.do(ctx, call{
		group:    GroupMarketplace,
		endpoint: "reshipment",
		account:  acct,
		method:   http.MethodGet,
		url:      join(c.opts.MarketplaceURL, "/api/v3/supplies/orders/reshipment"),
	}, &resp)
	if err != nil {
		return nil, err
	}
	for i := range resp.Orders {
		resp.Orders[i].Account = acct.Name
	}
	return resp.Orders, nil
}
