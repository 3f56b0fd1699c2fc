package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/modelw/preset/internal/env"
)

// Format selects the output rendering.
type Format int

const (
	// FormatTable renders a bordered table for humans.
	FormatTable Format = iota
	// FormatJSON renders line-delimited friendly structured output.
	FormatJSON
)

// FormatNames is the flag vocabulary, in the order it shows up in help
// output. ParseFormat accepts exactly these values.
var FormatNames = []string{"table", "json"}

// ParseFormat maps a flag value onto a Format.
func ParseFormat(raw string) (Format, error) {
	for i, name := range FormatNames {
		if raw == name {
			return Format(i), nil
		}
	}
	return FormatTable, fmt.Errorf("unknown output format %q", raw)
}

func (f Format) String() string {
	if f >= 0 && int(f) < len(FormatNames) {
		return FormatNames[f]
	}
	return "unknown"
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
)

type usedVar struct {
	Name       string `json:"name"`
	IsRequired bool   `json:"is_required"`
	IsYAML     bool   `json:"is_yaml"`
}

// sortedVars flattens the recorder map into rows sorted by name.
func sortedVars(used map[string]env.VarInfo) []usedVar {
	out := make([]usedVar, 0, len(used))
	for name, info := range used {
		out = append(out, usedVar{
			Name:       name,
			IsRequired: info.Required,
			IsYAML:     info.IsYAML,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Render writes the consulted environment variables in the chosen format.
func Render(w io.Writer, format Format, used map[string]env.VarInfo) error {
	rows := sortedVars(used)

	switch format {
	case FormatJSON:
		encoded, err := json.MarshalIndent(rows, "", "    ")
		if err != nil {
			return fmt.Errorf("encode used env vars: %w", err)
		}
		_, err = fmt.Fprintln(w, string(encoded))
		return err
	default:
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("Name", "Is Required?", "Is YAML?")
		for _, row := range rows {
			t.Row(
				nameStyle.Render(row.Name),
				yesNo(row.IsRequired, true),
				yesNo(row.IsYAML, true),
			)
		}
		if _, err := fmt.Fprintln(w, titleStyle.Render("Used env vars")); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, t.Render())
		return err
	}
}

// yesNo displays the truthiness of a value, highlighting it when it matches
// the warn case so the interesting rows stand out.
func yesNo(value, warn bool) string {
	out := "No"
	if value {
		out = "Yes"
	}
	if value == warn {
		return warnStyle.Render(out)
	}
	return out
}
