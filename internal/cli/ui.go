package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/reliefkit/pkg/overlay"
	"github.com/matzehuels/reliefkit/pkg/pipeline"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleKey = lipgloss.NewStyle().Foreground(colorGray).Width(14)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// =============================================================================
// Result Output
// =============================================================================

// printKeyValue prints a labeled value.
func printKeyValue(w io.Writer, key, value string) {
	fmt.Fprintln(w, styleKey.Render(key)+" "+StyleValue.Render(value))
}

// printFile prints a file output line.
func printFile(w io.Writer, label, path string) {
	fmt.Fprintln(w, "  "+StyleDim.Render(iconArrow)+" "+styleKey.Render(label)+" "+StyleValue.Render(path))
}

// printOutput prints a finished analysis.
func printOutput(w io.Writer, id string, a pipeline.Analysis, out *pipeline.Output) {
	fmt.Fprintln(w, StyleTitle.Render(string(a)))
	printKeyValue(w, "task", id)
	printKeyValue(w, "bounds", formatBounds(out.Bounds))
	if out.Area != nil {
		printKeyValue(w, "area", StyleNumber.Render(formatArea(*out.Area)))
		printKeyValue(w, "cells", StyleNumber.Render(fmt.Sprintf("%d", out.PixelCount)))
	}
	if s := out.Snap; s != nil {
		printKeyValue(w, "outlet", fmt.Sprintf("row %d, col %d · accumulation %g · moved %.1f",
			s.Cell.Row, s.Cell.Col, s.Accumulation, s.Distance))
	}
	printFile(w, "image", out.Image)
	if out.Footprint != "" {
		printFile(w, "footprint", out.Footprint)
	}
	names := make([]string, 0, len(out.Intermediates))
	for name := range out.Intermediates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		printFile(w, name, out.Intermediates[name])
	}
}

// printJSON prints res in its wire form.
func printJSON(w io.Writer, res *pipeline.Result) error {
	data, err := res.Marshal()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// formatBounds renders bounds as "S,W → N,E".
func formatBounds(b overlay.GeoBounds) string {
	return fmt.Sprintf("%.6f,%.6f %s %.6f,%.6f", b.South, b.West, iconArrow, b.North, b.East)
}

// formatArea renders an area in CRS square units, switching to km² above
// one million.
func formatArea(a float64) string {
	if a >= 1e6 {
		return fmt.Sprintf("%.3f km²", a/1e6)
	}
	return fmt.Sprintf("%.0f m²", a)
}
