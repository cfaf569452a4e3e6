package acts

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

// Layout of an acceptance-act sheet (1-based Excel rows).
const (
	headerRow    = 9
	subHeaderRow = 10
	firstDataRow = 13
	totalMarker  = "Итого"
)

// Field names a workbook column can resolve to.
const (
	FieldNum         = "num"
	FieldProductName = "product_name"
	FieldUnit        = "unit"
	FieldBarcode     = "barcode"
	FieldVendorCode  = "vendor_code"
	FieldSize        = "size"
	FieldKiz         = "kiz"
	FieldBoxBarcode  = "box_barcode"
	FieldQuantity    = "quantity"
	FieldOrderNumber = "order_number"
	FieldSticker     = "sticker"
)

// headerAliases maps a normalised header fragment to a field. Sub-header
// aliases are tried first, so "Фактически принято - ШК короба" resolves on
// "шк короба".
var (
	subHeaderAliases = map[string]string{
		"баркод":           FieldBarcode,
		"артикул продавца": FieldVendorCode,
		"сорт, размер":     FieldSize,
		"размер":           FieldSize,
		"киз":              FieldKiz,
		"шк короба":        FieldBoxBarcode,
		"кол-во":           FieldQuantity,
		"стикер/этикетка":  FieldSticker,
		"стикер":           FieldSticker,
	}
	headerAliases = map[string]string{
		"№ п/п":                FieldNum,
		"№ п\\п":               FieldNum,
		"№":                    FieldNum,
		"товар (наименование)": FieldProductName,
		"товар":                FieldProductName,
		"ед. изм.":             FieldUnit,
		"единица измерения":    FieldUnit,
		"номер заказа":         FieldOrderNumber,
		"кол-во":               FieldQuantity,
	}
)

// Record is one data row of an act, keyed by field name.
type Record struct {
	Fields   map[string]string
	Document string
	Date     string
	Account  string
}

// Has reports whether field is present and non-blank.
func (r Record) Has(field string) bool {
	return strings.TrimSpace(r.Fields[field]) != ""
}

// Sheet is a parsed workbook.
type Sheet struct {
	Date    string
	Columns []string // resolved field per column, "" when unknown
	Records []Record
}

// ParseWorkbook reads the active sheet of an act workbook. Rows that are
// entirely blank and the closing total row are skipped.
func ParseWorkbook(wb Workbook, account string) (Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(wb.Data))
	if err != nil {
		return Sheet{}, fmt.Errorf("acts: open workbook %s: %w", wb.Name, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		if list := f.GetSheetList(); len(list) > 0 {
			sheet = list[0]
		}
	}

	date, err := f.GetCellValue(sheet, "D3")
	if err != nil {
		return Sheet{}, fmt.Errorf("acts: %s: read date: %w", wb.Name, err)
	}
	if strings.TrimSpace(date) == "" {
		if date, err = f.GetCellValue(sheet, "F3"); err != nil {
			return Sheet{}, fmt.Errorf("acts: %s: read date: %w", wb.Name, err)
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return Sheet{}, fmt.Errorf("acts: %s: read rows: %w", wb.Name, err)
	}

	out := Sheet{Date: strings.TrimSpace(date)}
	out.Columns = resolveColumns(rowAt(rows, headerRow), rowAt(rows, subHeaderRow))

	for i := firstDataRow - 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) || totalRow(row) {
			continue
		}
		rec := Record{
			Fields:   make(map[string]string, len(out.Columns)),
			Document: wb.Document,
			Date:     out.Date,
			Account:  account,
		}
		for c, field := range out.Columns {
			if field == "" || c >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[c]); v != "" {
				rec.Fields[field] = v
			}
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

func rowAt(rows [][]string, excelRow int) []string {
	if excelRow-1 < len(rows) {
		return rows[excelRow-1]
	}
	return nil
}

// resolveColumns combines the two header rows. A field is claimed by the
// first column that resolves to it.
func resolveColumns(top, sub []string) []string {
	n := max(len(top), len(sub))
	cols := make([]string, n)
	claimed := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		var field string
		if i < len(sub) {
			field = subHeaderAliases[normalizeHeader(sub[i])]
		}
		if field == "" && i < len(top) {
			field = headerAliases[normalizeHeader(top[i])]
		}
		if field == "" || claimed[field] {
			continue
		}
		claimed[field] = true
		cols[i] = field
	}
	return cols
}

// normalizeHeader folds a header cell to NFC lower case with single spaces
// and "ё" folded to "е".
func normalizeHeader(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.ReplaceAll(s, "ё", "е")
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func totalRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) == totalMarker {
			return true
		}
	}
	return false
}
