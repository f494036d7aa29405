// Package report collects findings and writes them in the supported output
// formats.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/xuri/excelize/v2"

	"github.com/phobologic/dtscheck/internal/model"
	"github.com/phobologic/dtscheck/internal/toon"
)

// Format names an output encoding.
type Format string

const (
	JSON  Format = "json"
	JSONL Format = "jsonl"
	XLSX  Format = "xlsx"
	TOON  Format = "toon"
	Text  Format = "text"
)

// Formats lists every supported format.
var Formats = []Format{JSON, JSONL, XLSX, TOON, Text}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (want one of json, jsonl, xlsx, toon, text)", s)
}

// Binary reports whether the format must not be written to a terminal.
func (f Format) Binary() bool {
	return f == XLSX
}

// Sink accumulates findings in insertion order. It is not safe for
// concurrent use; the pipeline adds per-file results in file order.
type Sink struct {
	findings []model.Finding
}

// Add appends findings.
func (s *Sink) Add(findings ...model.Finding) {
	s.findings = append(s.findings, findings...)
}

// Len returns the number of findings collected.
func (s *Sink) Len() int {
	return len(s.findings)
}

// Findings returns a copy of the collected findings.
func (s *Sink) Findings() []model.Finding {
	out := make([]model.Finding, len(s.findings))
	copy(out, s.findings)
	return out
}

// Options control rendering.
type Options struct {
	Root  string // shown in TOON output
	Color bool   // style text output
}

// Write encodes findings to w in the given format. An empty finding list
// still produces a well-formed document.
func Write(w io.Writer, format Format, findings []model.Finding, opts Options) error {
	if findings == nil {
		findings = []model.Finding{}
	}
	switch format {
	case JSON:
		return writeJSON(w, findings)
	case JSONL:
		return writeJSONL(w, findings)
	case XLSX:
		return writeXLSX(w, findings)
	case TOON:
		_, err := fmt.Fprintln(w, toon.Encode(opts.Root, findings))
		return err
	case Text:
		return writeText(w, findings, opts.Color)
	}
	return fmt.Errorf("unknown format %q", format)
}

func writeJSON(w io.Writer, findings []model.Finding) error {
	data, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding findings: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func writeJSONL(w io.Writer, findings []model.Finding) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range findings {
		if err := enc.Encode(&findings[i]); err != nil {
			return fmt.Errorf("encoding finding %d: %w", i+1, err)
		}
	}
	return bw.Flush()
}

// SheetName is the worksheet holding the findings table.
const SheetName = "Js Api"

// SheetHeader is the first row of the findings worksheet.
var SheetHeader = []any{
	"order", "errorType", "fileName", "apiName", "apiContent", "type", "errorInfo", "version", "model",
}

func writeXLSX(w io.Writer, findings []model.Finding) error {
	book := excelize.NewFile()
	defer book.Close()

	idx, err := book.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	book.SetActiveSheet(idx)
	if err := book.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	header := SheetHeader
	if err := book.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i := range findings {
		f := &findings[i]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			i + 1,
			string(f.ErrorType),
			f.Location,
			f.ApiName,
			f.ApiFullText,
			string(f.ApiKind),
			f.Message,
			f.Version,
			f.BaseName,
		}
		if err := book.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	if err := book.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		TopLeftCell: "B1",
		ActivePane:  "topRight",
	}); err != nil {
		return fmt.Errorf("freezing order column: %w", err)
	}

	if _, err := book.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

var (
	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
	errorTypeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
	apiStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))
	summaryStyle = lipgloss.NewStyle().
			Bold(true)
)

func writeText(w io.Writer, findings []model.Finding, color bool) error {
	render := func(s lipgloss.Style, text string) string {
		if !color {
			return text
		}
		return s.Render(text)
	}

	bw := bufio.NewWriter(w)
	for i := range findings {
		f := &findings[i]
		name := f.ApiName
		if name == "" {
			name = string(f.ApiKind)
		}
		fmt.Fprintf(bw, "%s %s %s: %s\n",
			render(locationStyle, f.Location),
			render(errorTypeStyle, "["+string(f.ErrorType)+"]"),
			render(apiStyle, name),
			f.Message,
		)
	}
	noun := "findings"
	if len(findings) == 1 {
		noun = "finding"
	}
	fmt.Fprintln(bw, render(summaryStyle, fmt.Sprintf("%d %s", len(findings), noun)))
	return bw.Flush()
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
