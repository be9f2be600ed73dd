package skulist

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"pimphoto/internal/util"
)

// ParseText splits a free-form identifier list (spaces, commas or newlines
// between tokens) and returns canonical codes, deduplicated in first-seen
// order.
func ParseText(text string) []string {
	raw := strings.ReplaceAll(text, ",", " ")
	return util.MergeCodes(strings.Fields(raw))
}

// ParseFile reads identifiers from a file: an XLSX with a "sku" column, a
// PDF token list, or plain text.
func ParseFile(path string) ([]string, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return parseXLSX(blob)
	case ".pdf":
		return parsePDF(blob)
	default:
		return ParseText(string(blob)), nil
	}
}

func parseXLSX(content []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("sku workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sku workbook is empty")
	}

	skuIdx := -1
	for i, h := range rows[0] {
		lower := strings.ToLower(strings.TrimSpace(h))
		if lower == "sku" || strings.Contains(lower, "cnk") {
			skuIdx = i
			break
		}
	}
	if skuIdx < 0 {
		return nil, fmt.Errorf("sku workbook is missing a 'sku' column")
	}

	tokens := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if skuIdx < len(row) {
			tokens = append(tokens, row[skuIdx])
		}
	}
	return util.MergeCodes(tokens), nil
}

func parsePDF(content []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	text := strings.Builder{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}
	return ParseText(text.String()), nil
}
