package imports

import (
	"errors"
	"testing"
)

func TestParseCSVComma(t *testing.T) {
	t.Parallel()

	data := []byte("Name,Phone,Email\nAna,5215512345678,ana@x.com\nBob,5215599999999,\n")
	headers, rows, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(headers) != 3 || headers[0] != "Name" {
		t.Errorf("headers = %v", headers)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][1] != "5215512345678" {
		t.Errorf("rows[0][1] = %q", rows[0][1])
	}
}

func TestParseCSVSemicolon(t *testing.T) {
	t.Parallel()

	data := []byte("Nombre;Teléfono;Correo\nAna;5215512345678;ana@x.com\n")
	headers, rows, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(headers) != 3 {
		t.Fatalf("headers = %v, want 3 columns", headers)
	}
	if rows[0][0] != "Ana" {
		t.Errorf("rows[0][0] = %q", rows[0][0])
	}
}

func TestParseCSVQuotedDelimiterInHeader(t *testing.T) {
	t.Parallel()

	// Semicolons inside quotes must not flip the delimiter guess.
	data := []byte("Name,\"Notes; extra\"\nAna,hello\n")
	headers, _, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(headers) != 2 {
		t.Errorf("headers = %v, want 2 columns", headers)
	}
}

func TestParseCSVPadsShortRows(t *testing.T) {
	t.Parallel()

	data := []byte("Name,Phone,Email\nAna,5215512345678\n")
	headers, rows, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(rows[0]) != len(headers) {
		t.Fatalf("row width %d, want %d", len(rows[0]), len(headers))
	}
	if rows[0][2] != "" {
		t.Errorf("padded cell = %q, want empty", rows[0][2])
	}
}

func TestParseCSVSkipsEmptyRowsAndBOM(t *testing.T) {
	t.Parallel()

	data := []byte("\xEF\xBB\xBFName,Phone\nAna,5215512345678\n,,\n\nBob,5215599999999\n")
	headers, rows, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if headers[0] != "Name" {
		t.Errorf("BOM not stripped: %q", headers[0])
	}
	if len(rows) != 2 {
		t.Errorf("rows = %d, want 2 (blank rows skipped)", len(rows))
	}
}

func TestParseCSVErrors(t *testing.T) {
	t.Parallel()

	if _, _, err := ParseCSV(nil); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("nil input: %v, want ErrEmptyFile", err)
	}
	if _, _, err := ParseCSV([]byte("   \n  ")); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("whitespace input: %v, want ErrEmptyFile", err)
	}
	if _, _, err := ParseCSV([]byte("Name,Phone\n")); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("header only: %v, want ErrEmptyFile", err)
	}
}

func TestSampleCSVParsesBack(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{TypeUser, TypeProspect, TypeFoh} {
		data, name := SampleCSV(typ)
		if name == "" {
			t.Errorf("%s: empty file name", typ)
		}
		headers, rows, err := ParseCSV(data)
		if err != nil {
			t.Fatalf("%s: sample does not parse: %v", typ, err)
		}
		if len(headers) == 0 || len(rows) == 0 {
			t.Errorf("%s: sample is empty", typ)
		}
		sniffed := SniffHeaders(headers, typ == TypeFoh)
		if len(sniffed.Mapping) == 0 {
			t.Errorf("%s: sample headers sniff to nothing", typ)
		}
	}
}
