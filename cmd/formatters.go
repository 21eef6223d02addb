package cmd

import (
	"fmt"
	"io"
	"strings"

	"ruleguard/core"
)

// renderValidationResults prints one OK/FAIL line per file and a summary
func renderValidationResults(w io.Writer, results []fileResult) {
	failed := 0
	for _, res := range results {
		if res.Valid {
			if !quiet {
				successColor.Fprint(w, "OK   ")
				fmt.Fprintln(w, res.File)
			}
			continue
		}

		failed++
		errorColor.Fprint(w, "FAIL ")
		fmt.Fprintln(w, res.File)
		if len(res.Path) > 0 {
			fmt.Fprintf(w, "     %s (%s): %s\n", res.Path, res.Kind, res.Error)
		} else if res.Kind != "" {
			fmt.Fprintf(w, "     (%s): %s\n", res.Kind, res.Error)
		} else {
			fmt.Fprintf(w, "     %s\n", res.Error)
		}
		for _, v := range res.SchemaViolations {
			warningColor.Fprintf(w, "     schema: %s\n", v)
		}
	}

	if quiet {
		return
	}
	if failed == 0 {
		successColor.Fprintf(w, "✓ %d payload(s) valid\n", len(results))
		return
	}
	errorColor.Fprintf(w, "✗ %d of %d payload(s) failed\n", failed, len(results))
}

// renderAlertTypes displays alert types in a table
func renderAlertTypes(w io.Writer, types []core.AlertType) {
	if len(types) == 0 {
		warningColor.Fprintln(w, "No alert types registered")
		return
	}

	headerColor.Fprintln(w, "ALERT TYPES")
	headerColor.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%-30s %-30s %s\n", "ID", "Name", "Action Groups")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, t := range types {
		groups := make([]string, 0, len(t.ActionGroups))
		for _, g := range t.ActionGroups {
			groups = append(groups, g.ID)
		}
		fmt.Fprintf(w, "%-30s %-30s %s\n", truncate(t.ID, 29), truncate(t.Name, 29), strings.Join(groups, ","))
	}
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

// renderAlertPage displays one page of alerts in a table
func renderAlertPage(w io.Writer, page *core.AlertPage) {
	if page == nil || len(page.Data) == 0 {
		warningColor.Fprintln(w, "No alerts found")
		return
	}

	headerColor.Fprintln(w, "ALERTS")
	headerColor.Fprintln(w, strings.Repeat("=", 110))
	fmt.Fprintf(w, "%-38s %-30s %-20s %-9s %-6s %s\n", "ID", "Name", "Type", "Status", "Muted", "Tags")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, a := range page.Data {
		fmt.Fprintf(w, "%-38s %-30s %-20s %-9s %-6s %s\n",
			a.ID, truncate(a.Name, 29), truncate(a.AlertTypeID, 19),
			formatEnabled(a.Enabled), formatYesNo(a.MuteAll), strings.Join(a.Tags, ","))
	}
	fmt.Fprintln(w, strings.Repeat("=", 110))
	infoColor.Fprintf(w, "Page %d, %d per page, %d total\n", page.Page, page.PerPage, page.Total)
}

func formatEnabled(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func formatYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// truncate shortens s to limit runes, marking the cut with "..."
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}
