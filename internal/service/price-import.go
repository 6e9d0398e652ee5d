package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/Dmitryntvh/AVITO/internal/domain"
)

var (
	ErrUnsupportedFile = errors.New("unsupported price list file")
	ErrEmptyPriceList  = errors.New("price list has no header row")
)

// PriceListExts — расширения, которые принимает импорт прайса.
var PriceListExts = map[string]bool{"csv": true, "xlsx": true, "xlsm": true}

// ParsePriceList разбирает CSV или Excel с заголовком
// code,name,price,unit,description (регистр и порядок любые).
// Строки без code или name пропускаются, нечисловая цена становится 0.
func ParsePriceList(filename string, data []byte) ([]domain.ImportRow, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !PriceListExts[ext] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, filename)
	}

	mt := mimetype.Detect(data)
	var table [][]string
	var err error
	if ext == "csv" {
		if !isA(mt, "text/plain") {
			return nil, fmt.Errorf("%w: %s is %s, not text", ErrUnsupportedFile, filename, mt.String())
		}
		table, err = readCSV(data)
	} else {
		if !isA(mt, "application/zip") {
			return nil, fmt.Errorf("%w: %s is %s, not a workbook", ErrUnsupportedFile, filename, mt.String())
		}
		table, err = readWorkbook(data)
	}
	if err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return nil, ErrEmptyPriceList
	}
	return rowsFromTable(table), nil
}

func isA(mt *mimetype.MIME, mime string) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(mime) {
			return true
		}
	}
	return false
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	// Excel с русской локалью сохраняет CSV через ";".
	if first, _, _ := bytes.Cut(data, []byte("\n")); bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		r.Comma = ';'
	}

	var table [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		table = append(table, rec)
	}
	return table, nil
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyPriceList
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func rowsFromTable(table [][]string) []domain.ImportRow {
	index := make(map[string]int)
	for i, h := range table[0] {
		h = strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[h]; h != "" && !dup {
			index[h] = i
		}
	}
	cell := func(rec []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []domain.ImportRow
	for _, rec := range table[1:] {
		row := domain.ImportRow{
			Code:        cell(rec, "code"),
			Name:        cell(rec, "name"),
			Unit:        cell(rec, "unit"),
			Description: cell(rec, "description"),
		}
		if validate.Struct(row) != nil {
			continue
		}
		price, err := ParseDecimal(cell(rec, "price"))
		if err != nil {
			price = decimal.Zero
		}
		row.Price = price
		rows = append(rows, row)
	}
	return rows
}
