package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Banner is printed at the start of an export
const Banner = `
  ┌─┐┬ ┬┌─┐┌─┐┌─┐┬┬  ┌─┐┌─┐
  └─┐├─┤│ │├─┘├┤ ││  ├┤ └─┐
  └─┘┴ ┴└─┘┴  └  ┴┴─┘└─┘└─┘
  Shopify Files bulk export
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// Printer writes user-facing status lines. Colour is only used when the
// output is a terminal.
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter creates a Printer for out
func NewPrinter(out io.Writer) *Printer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{out: out, color: color && os.Getenv("NO_COLOR") == ""}
}

// Stdout returns a Printer for standard output
func Stdout() *Printer {
	return NewPrinter(os.Stdout)
}

func (p *Printer) paint(fn func(string) string, s string) string {
	if !p.color {
		return s
	}
	return fn(s)
}

// Banner prints the application banner
func (p *Printer) Banner() {
	fmt.Fprint(p.out, p.paint(Cyan, Banner))
}

// Error prints an error message in red
func (p *Printer) Error(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(p.out, p.paint(Red, msg))
}

// Success prints a success message in green
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.out, p.paint(Green, msg))
}

// Info prints a labelled value
func (p *Printer) Info(label string, value string) {
	fmt.Fprintf(p.out, "%s: %s\n", p.paint(Cyan, label), p.paint(Yellow, value))
}

// Warning prints a warning message in yellow
func (p *Printer) Warning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(p.out, p.paint(Yellow, msg))
}

// Highlight prints a highlighted message in magenta
func (p *Printer) Highlight(msg string) {
	fmt.Fprintln(p.out, p.paint(Magenta, msg))
}
