// Package report renders the human-readable summaries printed after each
// pipeline stage. Reports are markdown built from embedded templates and
// optionally styled for the terminal.
package report

import (
	"embed"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

//go:embed templates/*.md
var templates embed.FS

const currency = "USD"

// preciseUSD is USD with four fraction digits, for the sub-cent prices of
// early adjusted history.
var preciseUSD = money.AddCurrency("USD4", "$", "$1", ".", ",", 4)

var funcs = template.FuncMap{
	"usd":   usd,
	"usd4":  usd4,
	"comma": humanize.Comma,
	"pct":   func(f float64) string { return fmt.Sprintf("%.2f%%", f) },
	"pct1":  func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"fixed": func(d decimal.Decimal) string { return d.StringFixed(4) },
	"cell":  func(s string) string { return strings.ReplaceAll(s, "|", `\|`) },
}

// usd formats a price in dollars and cents.
func usd(d decimal.Decimal) string {
	return money.New(d.Shift(2).Round(0).IntPart(), currency).Display()
}

// usd4 formats a price in dollars to four decimal places.
func usd4(d decimal.Decimal) string {
	return money.New(d.Shift(4).Round(0).IntPart(), preciseUSD.Code).Display()
}

// Report is anything that renders itself to markdown.
type Report interface {
	Markdown() (string, error)
}

// renderTemplate executes one of the embedded templates. The shared
// partials are always available.
func renderTemplate(name string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).ParseFS(templates, "templates/"+name, "templates/partials.md")
	if err != nil {
		return "", fmt.Errorf("failed to parse report template %s: %w", name, err)
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("failed to execute report template %s: %w", name, err)
	}
	return b.String(), nil
}

// Mode selects how markdown reaches the terminal.
type Mode string

const (
	// ModeAuto styles output only when it goes to a terminal.
	ModeAuto    Mode = "auto"
	ModePlain   Mode = "plain"
	ModeGlamour Mode = "glamour"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModePlain, ModeGlamour:
		return m, nil
	default:
		return "", fmt.Errorf("unknown render mode %q (want auto, plain or glamour)", s)
	}
}

// Printer writes reports to Out.
type Printer struct {
	Out  io.Writer
	Mode Mode
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (p *Printer) styled() bool {
	switch p.Mode {
	case ModeGlamour:
		return true
	case ModePlain:
		return false
	}
	f, ok := p.Out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Print writes markdown, styled with glamour when the mode asks for it.
func (p *Printer) Print(markdown string) error {
	if p.styled() {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return fmt.Errorf("failed to create markdown renderer: %w", err)
		}
		if markdown, err = renderer.Render(markdown); err != nil {
			return fmt.Errorf("failed to render markdown: %w", err)
		}
	}
	if _, err := io.WriteString(p.Out, markdown); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// PrintReport renders r and prints it.
func (p *Printer) PrintReport(r Report) error {
	markdown, err := r.Markdown()
	if err != nil {
		return err
	}
	return p.Print(markdown)
}
