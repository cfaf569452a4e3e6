package acts

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vuvuzela92/waregouse-project/internal/schema"
)

// NoKiz is stored for FBO rows without a marking code.
const NoKiz = "Нет КИЗов"

// FBOContract receives goods accepted at marketplace warehouses, one row per
// article and box.
var FBOContract = schema.MustContract("acceptance_fbo_acts_new", schema.ColumnSchema{
	{Name: "num", Type: "INTEGER"},
	{Name: "product_name", Type: "VARCHAR(255)"},
	{Name: "unit", Type: "VARCHAR(50)"},
	{Name: "barcode", Type: "VARCHAR(50)"},
	{Name: "vendor_code", Type: "VARCHAR(50)"},
	{Name: "size", Type: "VARCHAR(50)"},
	{Name: "kiz", Type: "VARCHAR(255)"},
	{Name: "box_barcode", Type: "VARCHAR(50)"},
	{Name: "quantity", Type: "INTEGER"},
	{Name: "document", Type: "VARCHAR(255)"},
	{Name: "document_number", Type: "VARCHAR(50)"},
	{Name: "date", Type: "DATE"},
	{Name: "account", Type: "VARCHAR(100)"},
}, "vendor_code", "box_barcode", "document_number")

// FBSContract receives accepted seller-shipped orders, one row per sticker.
var FBSContract = schema.MustContract("acceptance_fbs_acts_new", schema.ColumnSchema{
	{Name: "num", Type: "INTEGER"},
	{Name: "order_number", Type: "VARCHAR(255)"},
	{Name: "unit", Type: "VARCHAR(50)"},
	{Name: "sticker", Type: "VARCHAR(255)"},
	{Name: "quantity", Type: "INTEGER"},
	{Name: "document", Type: "VARCHAR(255)"},
	{Name: "document_number", Type: "BIGINT"},
	{Name: "date", Type: "DATE"},
	{Name: "account", Type: "VARCHAR(50)"},
}, "order_number", "sticker", "document_number")

var documentNumberRe = regexp.MustCompile(`(\d+)\.zip`)

// DocumentNumber extracts the act number from an entry name such as
// "act-income-mp-123456.zip". It returns "" when there is none.
func DocumentNumber(document string) string {
	m := documentNumberRe.FindStringSubmatch(document)
	if m == nil {
		return ""
	}
	return m[1]
}

var months = map[string]time.Month{
	"января": time.January, "февраля": time.February, "марта": time.March,
	"апреля": time.April, "мая": time.May, "июня": time.June,
	"июля": time.July, "августа": time.August, "сентября": time.September,
	"октября": time.October, "ноября": time.November, "декабря": time.December,
}

var wordDateRe = regexp.MustCompile(`^(\d{1,2})([а-я]+)(\d{4})$`)

// ParseActDate parses the act date cell. Quotes, spaces and the trailing
// "г." are removed first; the remainder may be ddmmyyyy, dd.mm.yyyy or a day
// followed by a genitive month name and a year.
func ParseActDate(raw string) (time.Time, bool) {
	s := strings.NewReplacer(`"`, "", "«", "", "»", "", "г.", "", " ", "", "\u00a0", "").Replace(raw)
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"02012006", "02.01.2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	m := wordDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := months[m[2]]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// Split partitions records into FBO rows (box barcode present) and FBS rows
// (sticker present). A record with neither is dropped.
func Split(recs []Record) (fbo, fbs schema.Batch) {
	for _, r := range recs {
		switch {
		case r.Has(FieldBoxBarcode):
			fbo = append(fbo, fboRow(r))
		case r.Has(FieldSticker):
			fbs = append(fbs, fbsRow(r))
		}
	}
	return fbo, fbs
}

func fboRow(r Record) schema.Row {
	kiz := r.Fields[FieldKiz]
	if kiz == "" {
		kiz = NoKiz
	}
	return schema.Row{
		"num":             intOrNull(r.Fields[FieldNum]),
		"product_name":    strOrNull(r.Fields[FieldProductName]),
		"unit":            strOrNull(r.Fields[FieldUnit]),
		"barcode":         strOrNull(r.Fields[FieldBarcode]),
		"vendor_code":     strOrNull(r.Fields[FieldVendorCode]),
		"size":            strOrNull(r.Fields[FieldSize]),
		"kiz":             schema.String(kiz),
		"box_barcode":     strOrNull(r.Fields[FieldBoxBarcode]),
		"quantity":        intOrNull(r.Fields[FieldQuantity]),
		"document":        schema.String(r.Document),
		"document_number": strOrNull(DocumentNumber(r.Document)),
		"date":            dateOrNull(r.Date),
		"account":         schema.String(r.Account),
	}
}

func fbsRow(r Record) schema.Row {
	return schema.Row{
		"num":             intOrNull(r.Fields[FieldNum]),
		"order_number":    strOrNull(r.Fields[FieldOrderNumber]),
		"unit":            strOrNull(r.Fields[FieldUnit]),
		"sticker":         strOrNull(r.Fields[FieldSticker]),
		"quantity":        intOrNull(r.Fields[FieldQuantity]),
		"document":        schema.String(r.Document),
		"document_number": intOrNull(DocumentNumber(r.Document)),
		"date":            dateOrNull(r.Date),
		"account":         schema.String(r.Account),
	}
}

func strOrNull(s string) schema.Value {
	if s == "" {
		return schema.Null()
	}
	return schema.String(s)
}

// intOrNull accepts integers written as "3" or "3.0" (as spreadsheets store
// them); anything else is null.
func intOrNull(s string) schema.Value {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return schema.Null()
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return schema.Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return schema.Int(int64(f))
	}
	return schema.Null()
}

func dateOrNull(s string) schema.Value {
	t, ok := ParseActDate(s)
	if !ok {
		return schema.Null()
	}
	return schema.Time(t)
}
