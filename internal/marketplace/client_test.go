package marketplace

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAccount = Account{Name: "vector", Token: "tok-vector"}

// newTestClient points every base URL at srv and disables pacing.
func newTestClient(srv *httptest.Server, retries int) *Client {
	return New(Options{
		DocumentsURL:   srv.URL,
		MarketplaceURL: srv.URL,
		StockURL:       srv.URL,
		Timeout:        5 * time.Second,
		MaxRetries:     retries,
		RetryWait:      time.Millisecond,
		RetryMaxWait:   5 * time.Millisecond,
		Limits: map[Group]Limit{
			GroupDocuments:   {},
			GroupDownloads:   {},
			GroupMarketplace: {},
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestListDocuments_PaginatesUntilShortPage(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/v1/documents/list", r.URL.Path)
		assert.Equal(t, "tok-vector", r.Header.Get("Authorization"))
		assert.Equal(t, "act-income-mp", r.URL.Query().Get("category"))
		assert.Equal(t, "2026-10-01", r.URL.Query().Get("beginTime"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		n := 50
		if offset >= 50 {
			n = 3
		}
		docs := make([]Document, n)
		for i := range docs {
			docs[i] = Document{ServiceName: fmt.Sprintf("act-income-mp-%d", offset+i), Category: "act-income-mp"}
		}
		writeJSON(w, map[string]any{"data": map[string]any{"documents": docs}})
	}))
	defer srv.Close()

	begin := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	docs, err := newTestClient(srv, 0).ListDocuments(context.Background(), testAccount, "act-income-mp", begin, begin.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Len(t, docs, 53)
	assert.Equal(t, "act-income-mp-52", docs[52].ServiceName)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestDownloadDocuments_BatchesAndDecodes(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		sizes []int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body struct {
			Params []downloadParam `json:"params"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		for _, p := range body.Params {
			assert.Equal(t, "xlsx", p.Extension)
		}
		mu.Lock()
		sizes = append(sizes, len(body.Params))
		n := len(sizes)
		mu.Unlock()
		payload := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("zip-%d", n)))
		writeJSON(w, map[string]any{"data": map[string]any{"fileName": "bundle", "extension": "zip", "document": payload}})
	}))
	defer srv.Close()

	names := make([]string, 120)
	for i := range names {
		names[i] = fmt.Sprintf("doc-%d", i)
	}
	archives, err := newTestClient(srv, 0).DownloadDocuments(context.Background(), testAccount, names)
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []int{50, 50, 20}, sizes)
	mu.Unlock()
	require.Len(t, archives, 3)
	assert.Equal(t, []byte("zip-3"), archives[2].Data)
	assert.Equal(t, "bundle", archives[0].FileName)
}

func TestDownloadDocuments_BadBase64(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": map[string]any{"document": "%%%not-base64"}})
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 0).DownloadDocuments(context.Background(), testAccount, []string{"a"})
	assert.ErrorContains(t, err, "base64")
}

func TestListOrders_FollowsCursor(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		switch r.URL.Query().Get("next") {
		case "0":
			writeJSON(w, map[string]any{"next": 77, "orders": []map[string]any{{"id": 1, "article": "wild12-red"}, {"id": 2}}})
		case "77":
			writeJSON(w, map[string]any{"next": 0, "orders": []map[string]any{{"id": 3, "price": 150000}}})
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("next"))
		}
	}))
	defer srv.Close()

	orders, err := newTestClient(srv, 0).ListOrders(context.Background(), testAccount)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "vector", orders[2].Account)
	assert.EqualValues(t, 150000, orders[2].Price)
	assert.Equal(t, "wild12-red", orders[0].Article)
}

func TestOrderStatuses_ChunksIDs(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		sizes []int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Orders []int64 `json:"orders"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		sizes = append(sizes, len(body.Orders))
		mu.Unlock()
		out := make([]OrderStatus, len(body.Orders))
		for i, id := range body.Orders {
			out[i] = OrderStatus{ID: id, SupplierStatus: "new", WBStatus: "waiting"}
		}
		writeJSON(w, map[string]any{"orders": out})
	}))
	defer srv.Close()

	ids := make([]int64, 2500)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	st, err := newTestClient(srv, 0).OrderStatuses(context.Background(), testAccount, ids)
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []int{1000, 1000, 500}, sizes)
	mu.Unlock()
	assert.Len(t, st, 2500)
	assert.Equal(t, "vector", st[0].Account)
}

func TestClient_RetriesTooManyRequests(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, map[string]any{"orders": []map[string]any{{"supplyId": "WB-GI-1", "orderId": 9}}})
	}))
	defer srv.Close()

	res, err := newTestClient(srv, 2).ReshipmentOrders(context.Background(), testAccount)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.EqualValues(t, 9, res[0].OrderID)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestClient_ClientErrorsNotRetried(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"title":"unauthorized"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 3).ListSupplies(context.Background(), testAccount)
	var ae *APIError
	require.True(t, errors.As(err, &ae), "err = %v", err)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
	assert.Equal(t, "supplies", ae.Endpoint)
	assert.Equal(t, "vector", ae.Account)
	assert.Contains(t, ae.Body, "unauthorized")
	assert.False(t, ae.Retryable())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestClient_ServerErrorsExhaustRetries(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 2).Balances(context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestStock_DecodesMixedProductIDs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/warehouse_and_balances/get_all_product_current_balances":
			_, _ = w.Write([]byte(`[{"product_id":"wild101","warehouse_id":1,"physical_quantity":5,"available_quantity":3},
				{"product_id":202,"warehouse_id":2,"physical_quantity":1,"available_quantity":1}]`))
		case "/api/shipment_of_goods/summ_reserve_data":
			_, _ = w.Write([]byte(`[{"product_id":"wild101","delivery_type_data":[{"reserve_type":"ФБС","current_reserve":2}]}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv, 0)
	bal, err := c.Balances(context.Background())
	require.NoError(t, err)
	require.Len(t, bal, 2)
	assert.Equal(t, ProductID("wild101"), bal[0].ProductID)
	assert.Equal(t, ProductID("202"), bal[1].ProductID)

	res, err := c.Reserves(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.EqualValues(t, 2, res[0].DeliveryTypeData[0].CurrentReserve)
}

func TestClient_PacesPerAccountAndGroup(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"orders": []any{}})
	}))
	defer srv.Close()

	c := New(Options{
		MarketplaceURL: srv.URL,
		Limits:         map[Group]Limit{GroupMarketplace: {Every: 40 * time.Millisecond, Burst: 1}},
	})
	other := Account{Name: "other", Token: "t"}

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.ReshipmentOrders(context.Background(), testAccount)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)

	// A different account has its own bucket and is admitted at once.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.ReshipmentOrders(ctx, other)
	assert.NoError(t, err)
}
