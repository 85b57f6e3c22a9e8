// Package input turns a product spreadsheet into scan tasks.
package input

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"ImageHarvester/internal/models"
	"ImageHarvester/utils"
)

// Supported encodings.
const (
	EncodingShiftJIS = "shift_jis"
	EncodingUTF8     = "utf-8"
)

// Row maps header names to cell values.
type Row map[string]string

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decoder wraps r according to encoding. Unknown encodings are rejected.
func decoder(r io.Reader, encoding string) (io.Reader, error) {
	canonical, _ := utils.CanonicalEncoding(encoding)
	switch canonical {
	case EncodingShiftJIS:
		return transform.NewReader(r, japanese.ShiftJIS.NewDecoder()), nil
	case EncodingUTF8:
		br := bufio.NewReader(r)
		if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = br.Discard(len(utf8BOM))
		}
		return br, nil
	default:
		return nil, &models.StructuralError{Field: "encoding", Message: fmt.Sprintf("unsupported encoding %q", encoding)}
	}
}

// ReadCSV parses a CSV with a header row. Empty lines are skipped and short
// rows simply lack the trailing columns.
func ReadCSV(r io.Reader, encoding string) ([]string, []Row, error) {
	dec, err := decoder(r, encoding)
	if err != nil {
		return nil, nil, err
	}

	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, &models.StructuralError{Message: "CSV file is empty"}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing CSV headers: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("error parsing CSV: %w", err)
		}
		if blank(rec) {
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

// ReadFile opens path and parses it with ReadCSV.
func ReadFile(path, encoding string) ([]string, []Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, encoding)
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
