package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var (
	successMark = color.New(color.FgGreen).SprintFunc()
	unreadMark  = color.New(color.FgYellow, color.Bold).SprintFunc()
	dim         = color.New(color.Faint).SprintFunc()
)

// render writes v as JSON or YAML when requested, otherwise calls table.
func render(w io.Writer, format string, v any, table func(tw *tabwriter.Writer)) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "", "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", successMark("✓"), fmt.Sprintf(format, args...))
}

func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func readMark(read bool) string {
	if read {
		return " "
	}
	return unreadMark("●")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
