package pipeline

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"pimphoto/internal"
	"pimphoto/internal/util"
)

// SchemaError is the only fatal extraction failure: a required column is
// absent from the workbook.
type SchemaError struct {
	Sheet  string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("workbook schema: sheet %q is missing a %s column", e.Sheet, e.Column)
}

// Header probes per column, covering the NL and FR export variants. Lookup
// is case-insensitive; exact matches win over substring matches.
var (
	idProbes   = []string{"id", "product id", "productid"}
	codeProbes = []string{"cnk", "cnk code", "cnk-code", "code cnk"}
	urlProbes  = []string{"url", "foto url", "photo url"}
	typeProbes = []string{"type", "fototype", "type de photo"}
	seqProbes  = []string{"volgorde", "ordre", "sequence", "seq"}
)

// Extract parses the two-sheet export workbook. The product sheet is the
// first sheet of the workbook; the photo sheet is located by name with a
// second-sheet fallback. Photo rows without a URL are dropped here; the run
// reports products left with no surviving rows.
func Extract(workbook []byte) ([]internal.ProductRecord, []internal.PhotoCandidate, error) {
	f, err := excelize.OpenReader(bytes.NewReader(workbook))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, &SchemaError{Sheet: "", Column: "product identifier"}
	}

	products, err := extractProducts(f, sheets[0])
	if err != nil {
		return nil, nil, err
	}

	photoSheet := findPhotoSheet(sheets)
	if photoSheet == "" {
		return nil, nil, &SchemaError{Sheet: "photos", Column: "product identifier"}
	}
	photos, err := extractPhotos(f, photoSheet)
	if err != nil {
		return nil, nil, err
	}

	return products, photos, nil
}

func extractProducts(f *excelize.File, sheet string) ([]internal.ProductRecord, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &SchemaError{Sheet: sheet, Column: "product identifier"}
	}

	headers := normalizeHeaders(rows[0])
	idIdx := findHeaderIndex(headers, idProbes)
	codeIdx := findHeaderIndex(headers, codeProbes)
	if idIdx < 0 {
		return nil, &SchemaError{Sheet: sheet, Column: "product identifier"}
	}
	if codeIdx < 0 {
		return nil, &SchemaError{Sheet: sheet, Column: "product code"}
	}

	seen := map[string]struct{}{}
	out := make([]internal.ProductRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		id := pickCell(row, idIdx)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		code, ok := util.NormalizeCode(pickCell(row, codeIdx))
		if !ok {
			// No usable code: the product stays unmapped so its photo rows
			// are reported instead of silently dropped.
			continue
		}
		out = append(out, internal.ProductRecord{InternalID: id, CanonicalCode: code})
	}

	return out, nil
}

func extractPhotos(f *excelize.File, sheet string) ([]internal.PhotoCandidate, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &SchemaError{Sheet: sheet, Column: "product identifier"}
	}

	headers := normalizeHeaders(rows[0])
	idIdx := findHeaderIndex(headers, idProbes)
	urlIdx := findHeaderIndex(headers, urlProbes)
	typeIdx := findHeaderIndex(headers, typeProbes)
	seqIdx := findHeaderIndex(headers, seqProbes)
	if idIdx < 0 {
		return nil, &SchemaError{Sheet: sheet, Column: "product identifier"}
	}
	if urlIdx < 0 {
		return nil, &SchemaError{Sheet: sheet, Column: "image URL"}
	}

	out := make([]internal.PhotoCandidate, 0, len(rows)-1)
	for i, row := range rows[1:] {
		id := pickCell(row, idIdx)
		url := pickCell(row, urlIdx)
		if id == "" || url == "" {
			continue
		}

		candidate := internal.PhotoCandidate{
			ProductInternalID: id,
			SourceURL:         url,
			TypeLabel:         pickCell(row, typeIdx),
			RowNo:             i + 2,
		}
		if seq, ok := parseSequence(pickCell(row, seqIdx)); ok {
			candidate.SequenceNumber = &seq
		}
		out = append(out, candidate)
	}

	return out, nil
}

func findPhotoSheet(sheets []string) string {
	// sheets[0] is always the product sheet, whatever it is named.
	for _, name := range sheets[1:] {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "foto") || strings.Contains(lower, "photo") {
			return name
		}
	}
	if len(sheets) >= 2 {
		return sheets[1]
	}
	return ""
}

func normalizeHeaders(row []string) []string {
	out := make([]string, len(row))
	for i, h := range row {
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

func findHeaderIndex(headers []string, probes []string) int {
	for _, probe := range probes {
		for i, h := range headers {
			if h == probe {
				return i
			}
		}
	}
	for _, probe := range probes {
		if len(probe) < 3 {
			continue
		}
		for i, h := range headers {
			if strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseSequence(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	// Spreadsheet numerics sometimes round-trip as floats ("2.0").
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(v), true
	}
	return 0, false
}
