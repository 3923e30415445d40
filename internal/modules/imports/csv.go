package imports

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyFile = errors.New("file contains no rows")
	ErrBadCSV    = errors.New("file could not be parsed as CSV")
	ErrNoHeaders = errors.New("file has no header row")
)

// sniffDelimiter picks between comma and semicolon by counting occurrences
// outside quoted sections of the first line. Semicolon-delimited exports are
// common from spreadsheet tools in locales that use comma as decimal mark.
func sniffDelimiter(firstLine string) rune {
	commas, semis := 0, 0
	inQuote := false
	for _, ch := range firstLine {
		switch ch {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				commas++
			}
		case ';':
			if !inQuote {
				semis++
			}
		}
	}
	if semis > commas {
		return ';'
	}
	return ','
}

// ParseCSV decodes an uploaded payload into a header row and data rows.
// Rows shorter than the header are padded with empty cells; fully empty
// rows are skipped.
func ParseCSV(data []byte) (headers []string, rows [][]string, err error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}) // UTF-8 BOM
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, ErrEmptyFile
	}

	firstLine := string(data)
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		firstLine = string(data[:idx])
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(firstLine)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadCSV, err)
	}
	if len(records) == 0 {
		return nil, nil, ErrEmptyFile
	}

	headers = records[0]
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	if len(headers) == 0 || (len(headers) == 1 && headers[0] == "") {
		return nil, nil, ErrNoHeaders
	}

	for _, rec := range records[1:] {
		empty := true
		for _, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		if len(rec) < len(headers) {
			padded := make([]string, len(headers))
			copy(padded, rec)
			rec = padded
		} else if len(rec) > len(headers) {
			rec = rec[:len(headers)]
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return headers, nil, ErrEmptyFile
	}
	return headers, rows, nil
}

// SampleCSV returns a downloadable example file for the given import type.
func SampleCSV(importType string) ([]byte, string) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	switch importType {
	case TypeProspect:
		w.Write([]string{"Name", "Phone", "Email", "Source"})
		w.Write([]string{"Maria Lopez", "5215512345678", "maria@example.com", "web"})
		w.Write([]string{"Juan Perez", "5215598765432", "", "event"})
	case TypeFoh:
		w.Write([]string{"Phone", "Phone Country", "Email"})
		w.Write([]string{"5215512345678", "52", "front1@example.com"})
		w.Write([]string{"5215598765432", "52", ""})
	default:
		w.Write([]string{"Code", "Name", "Email", "Phone", "Phone Country", "Role", "Manager Email"})
		w.Write([]string{"EMP-001", "Maria Lopez", "maria@example.com", "5215512345678", "52", "agent", "boss@example.com"})
		w.Write([]string{"EMP-002", "Juan Perez", "juan@example.com", "5215598765432", "52", "supervisor", ""})
	}
	w.Flush()
	return buf.Bytes(), fmt.Sprintf("sample_%s_import.csv", importType)
}
