// Package terminal renders run progress and results for humans. Colors
// follow fatih/color, which disables itself for NO_COLOR and non-terminals.
package terminal

import (
	"github.com/fatih/color"
)

var (
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	gray   = color.New(color.FgHiBlack)
	bold   = color.New(color.Bold)
)

// Red renders s in red.
func Red(s string) string { return red.Sprint(s) }

// Green renders s in green.
func Green(s string) string { return green.Sprint(s) }

// Yellow renders s in yellow.
func Yellow(s string) string { return yellow.Sprint(s) }

// Gray renders s in gray.
func Gray(s string) string { return gray.Sprint(s) }

// Bold renders s in bold.
func Bold(s string) string { return bold.Sprint(s) }

// Status renders a status word with its symbol and color.
func Status(status string) string {
	switch status {
	case "success":
		return Green("✓ " + status)
	case "failed":
		return Red("✗ " + status)
	case "skipped":
		return Yellow("- " + status)
	default:
		return status
	}
}
