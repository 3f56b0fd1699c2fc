package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelw/preset/internal/env"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    Format
		wantErr bool
	}{
		{raw: "table", want: FormatTable},
		{raw: "json", want: FormatJSON},
		{raw: "xml", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tc := range tests {
		got, err := ParseFormat(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("expected %s for %q, got %s", tc.want, tc.raw, got)
		}
	}
}

func TestFormatNamesRoundTrip(t *testing.T) {
	t.Parallel()

	// Every value the flag accepts must parse back to a format whose String
	// is that same value.
	for _, name := range FormatNames {
		format, err := ParseFormat(name)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", name, err)
		}
		if format.String() != name {
			t.Fatalf("expected %q to round-trip, got %s", name, format)
		}
	}

	if Format(len(FormatNames)).String() != "unknown" {
		t.Fatalf("expected out-of-range format to render as unknown")
	}
}

func sampleUsed() map[string]env.VarInfo {
	return map[string]env.VarInfo{
		"SECRET_KEY": {Required: true, IsYAML: false},
		"DEBUG":      {Required: false, IsYAML: true},
		"BASE_URL":   {Required: true, IsYAML: false},
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, FormatJSON, sampleUsed()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rows []usedVar
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Name != "BASE_URL" || rows[1].Name != "DEBUG" || rows[2].Name != "SECRET_KEY" {
		t.Fatalf("expected rows sorted by name, got %v", rows)
	}
	if !rows[2].IsRequired || rows[2].IsYAML {
		t.Fatalf("unexpected SECRET_KEY row: %+v", rows[2])
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, FormatTable, sampleUsed()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, expect := range []string{"Used env vars", "Name", "SECRET_KEY", "DEBUG", "BASE_URL"} {
		if !strings.Contains(out, expect) {
			t.Fatalf("expected output to contain %q, got:\n%s", expect, out)
		}
	}
}

func TestToStringSlice(t *testing.T) {
	t.Parallel()

	got, err := toStringSlice([]any{"en", "es"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "en" {
		t.Fatalf("unexpected result: %v", got)
	}

	if _, err := toStringSlice([]any{"en", 3}); err == nil {
		t.Fatalf("expected error for mixed list")
	}
	if _, err := toStringSlice("en"); err == nil {
		t.Fatalf("expected error for scalar")
	}
}
