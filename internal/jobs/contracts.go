package jobs

import "github.com/vuvuzela92/waregouse-project/internal/schema"

// AssemblyContract holds assembly tasks joined with their statuses. A task
// gets a new row each time its status pair changes.
var AssemblyContract = schema.MustContract("assembly_task_status_model", schema.ColumnSchema{
	{Name: "date", Type: "DATE"},
	{Name: "nm_id", Type: "BIGINT"},
	{Name: "local_vendor_code", Type: "TEXT"},
	{Name: "vendor_code", Type: "TEXT"},
	{Name: "id", Type: "BIGINT"},
	{Name: "supplier_status", Type: "TEXT"},
	{Name: "wb_status", Type: "TEXT"},
	{Name: "supply_id", Type: "TEXT"},
	{Name: "address", Type: "TEXT"},
	{Name: "scan_price", Type: "NUMERIC(10,2)"},
	{Name: "price", Type: "NUMERIC(12,2)"},
	{Name: "converted_price", Type: "NUMERIC(12,2)"},
	{Name: "comment", Type: "TEXT"},
	{Name: "delivery_type", Type: "TEXT"},
	{Name: "order_uid", Type: "TEXT"},
	{Name: "color_code", Type: "TEXT"},
	{Name: "rid", Type: "TEXT"},
	{Name: "created_at", Type: "TIMESTAMP"},
	{Name: "created_at_msk", Type: "TIMESTAMP"},
	{Name: "offices", Type: "TEXT"},
	{Name: "skus", Type: "TEXT"},
	{Name: "warehouse_id", Type: "INTEGER"},
	{Name: "chrt_id", Type: "BIGINT"},
	{Name: "currency_code", Type: "INTEGER"},
	{Name: "converted_currency_code", Type: "INTEGER"},
	{Name: "cargo_type", Type: "INTEGER"},
	{Name: "is_zero_order", Type: "BOOLEAN"},
	{Name: "options", Type: "TEXT"},
	{Name: "office_id", Type: "INTEGER"},
	{Name: "account", Type: "VARCHAR(50)"},
}, "id", "supplier_status", "wb_status")

// SuppliesContract holds FBS supplies.
var SuppliesContract = schema.MustContract("supplies_data", schema.ColumnSchema{
	{Name: "closed_at", Type: "TIMESTAMP"},
	{Name: "scan_dt", Type: "TIMESTAMP"},
	{Name: "reject_dt", Type: "TIMESTAMP"},
	{Name: "destination_office_id", Type: "INTEGER"},
	{Name: "id", Type: "VARCHAR(255)"},
	{Name: "name", Type: "TEXT"},
	{Name: "created_at", Type: "TIMESTAMP"},
	{Name: "cargo_type", Type: "INTEGER"},
	{Name: "done", Type: "BOOLEAN"},
	{Name: "account", Type: "VARCHAR(255)"},
	{Name: "created_at_db", Type: "TIMESTAMP"},
}, "id")

// ReshipmentsContract holds orders waiting to be shipped again.
var ReshipmentsContract = schema.MustContract("re_shipments", schema.ColumnSchema{
	{Name: "supply_id", Type: "TEXT"},
	{Name: "order_id", Type: "BIGINT"},
	{Name: "date", Type: "DATE"},
	{Name: "account", Type: "TEXT"},
}, "order_id", "account")

// StockContract holds one balance snapshot per product and day on the main
// warehouse; later runs on the same day overwrite it.
var StockContract = schema.MustContract("stock_balances", schema.ColumnSchema{
	{Name: "product_id", Type: "TEXT"},
	{Name: "physical_quantity", Type: "INTEGER"},
	{Name: "available_quantity", Type: "INTEGER"},
	{Name: "fbo_reserve", Type: "INTEGER"},
	{Name: "fbs_reserve", Type: "INTEGER"},
	{Name: "snapshot_date", Type: "DATE"},
	{Name: "snapshot_at", Type: "TIMESTAMP"},
}, "product_id", "snapshot_date")
