// Package excel reads and writes the warehouse master spreadsheet
// format (one sheet, fixed column set) using excelize.
//
// Import headers are resolved through a declared mapping table instead
// of duck-typed field probing: every accepted spelling of a column is
// listed against its canonical field, unknown columns are ignored, and
// a sheet binding two columns to the same field is rejected as
// ambiguous.
package excel

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"inventory-service/internal/model"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Inventory"

// ErrNoHeader is returned when the sheet has no header row
var ErrNoHeader = errors.New("spreadsheet has no header row")

type columnSpec struct {
	field    string
	header   string
	variants []string
}

// The export header set, in column order. Variants list every accepted
// import spelling after normalization (lowercased, underscores treated
// as spaces, surrounding space dropped).
var columns = []columnSpec{
	{field: "kd_brg", header: "Kd Brg", variants: []string{"kd brg", "kode barang"}},
	{field: "barcode", header: "Barcode", variants: []string{"barcode"}},
	{field: "nm_brg", header: "Nm Brg", variants: []string{"nm brg", "nama barang"}},
	{field: "satuan", header: "Satuan", variants: []string{"satuan"}},
	{field: "hrg_beli", header: "Hrg Beli", variants: []string{"hrg beli", "harga beli"}},
	{field: "qty", header: "Qty", variants: []string{"qty"}},
	{field: "gol1", header: "Gol1", variants: []string{"gol1", "gol 1"}},
	{field: "golongan", header: "Golongan", variants: []string{"golongan"}},
	{field: "sub_gol", header: "Sub Gol", variants: []string{"sub gol"}},
	{field: "qty_min", header: "Qty Min", variants: []string{"qty min"}},
	{field: "qty_max", header: "Qty Max", variants: []string{"qty max"}},
	{field: "kode_supl", header: "Kode Supl", variants: []string{"kode supl", "kode supplier"}},
}

var variantToField = buildVariantIndex()

func buildVariantIndex() map[string]string {
	idx := make(map[string]string)
	for _, col := range columns {
		for _, v := range col.variants {
			idx[v] = col.field
		}
	}
	return idx
}

func normalizeHeader(h string) string {
	h = strings.ReplaceAll(strings.ToLower(h), "_", " ")
	return strings.Join(strings.Fields(h), " ")
}

// MapHeader resolves a header row to a column-index -> field mapping.
// Unknown headers are skipped; two columns resolving to the same field
// make the sheet ambiguous and are rejected.
func MapHeader(header []string) (map[int]string, error) {
	mapping := make(map[int]string)
	seen := make(map[string]int)
	for i, cell := range header {
		norm := normalizeHeader(cell)
		if norm == "" {
			continue
		}
		field, ok := variantToField[norm]
		if !ok {
			continue
		}
		if prev, dup := seen[field]; dup {
			return nil, fmt.Errorf("ambiguous header: columns %d and %d both map to %s", prev+1, i+1, field)
		}
		seen[field] = i
		mapping[i] = field
	}
	return mapping, nil
}

// ReadItems parses an xlsx stream into catalog items. Numeric cells
// that fail to parse become zero; a missing name becomes
// "Unknown Item", a missing unit "pcs" and a missing group "General".
func ReadItems(r io.Reader) ([]model.InventoryItem, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	mapping, err := MapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	items := make([]model.InventoryItem, 0, len(rows)-1)
	for _, row := range rows[1:] {
		item := model.InventoryItem{NmBrg: "Unknown Item"}
		for col, field := range mapping {
			if col >= len(row) {
				continue
			}
			setField(&item, field, strings.TrimSpace(row[col]))
		}
		if item.Satuan == nil {
			item.Satuan = optional("pcs")
		}
		if item.Golongan == nil {
			item.Golongan = optional("General")
		}
		items = append(items, item)
	}
	return items, nil
}

func setField(item *model.InventoryItem, field, value string) {
	switch field {
	case "kd_brg":
		item.KdBrg = optional(value)
	case "barcode":
		item.Barcode = optional(value)
	case "nm_brg":
		if value != "" {
			item.NmBrg = value
		}
	case "satuan":
		item.Satuan = optional(value)
	case "hrg_beli":
		item.HrgBeli = toFloat(value)
	case "qty":
		item.Qty = toInt(value)
	case "gol1":
		item.Gol1 = toFloat(value)
	case "golongan":
		item.Golongan = optional(value)
	case "sub_gol":
		item.SubGol = optional(value)
	case "qty_min":
		item.QtyMin = toInt(value)
	case "qty_max":
		item.QtyMax = toInt(value)
	case "kode_supl":
		item.KodeSupl = optional(value)
	}
}

// WriteItems writes the catalog as an xlsx stream in the export layout
func WriteItems(w io.Writer, items []model.InventoryItem) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col.header)
	}

	for rowIdx, item := range items {
		values := []interface{}{
			derefStr(item.KdBrg),
			derefStr(item.Barcode),
			item.NmBrg,
			derefStr(item.Satuan),
			item.HrgBeli,
			item.Qty,
			item.Gol1,
			derefStr(item.Golongan),
			derefStr(item.SubGol),
			item.QtyMin,
			item.QtyMax,
			derefStr(item.KodeSupl),
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	return f.Write(w)
}

// WriteOpname writes audit records as an xlsx stream
func WriteOpname(w io.Writer, records []model.StockOpname) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet("Stock Opname")
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Kd Brg", "Barcode", "Nm Brg", "System Qty", "Physical Qty", "Difference", "Satuan", "Hrg Beli", "Rack", "User", "Division", "Date"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Stock Opname", cell, h)
	}

	for rowIdx, rec := range records {
		values := []interface{}{
			derefStr(rec.KdBrg),
			derefStr(rec.Barcode),
			rec.NmBrg,
			rec.SystemQty,
			rec.PhysicalQty,
			rec.Difference,
			derefStr(rec.Satuan),
			rec.HrgBeli,
			rec.RackNo,
			rec.UserName,
			derefStr(rec.Division),
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue("Stock Opname", cell, v)
		}
	}

	return f.Write(w)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

func toInt(s string) int {
	return int(toFloat(s))
}
