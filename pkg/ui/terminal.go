package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Banner is printed once at the start of an interactive run
const Banner = `
    ╔════════════════════════════════════════════════╗
    ║   YAREVIEWS · organisation review extractor    ║
    ╚════════════════════════════════════════════════╝
`

var (
	outMu   sync.Mutex
	out     io.Writer = os.Stderr
	colored           = IsTerminal(os.Stderr)
)

// SetOutput redirects status output. Colour is kept only for terminals.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out = w
	f, ok := w.(*os.File)
	colored = ok && IsTerminal(f)
}

// SetColor forces colour on or off
func SetColor(enabled bool) {
	outMu.Lock()
	defer outMu.Unlock()
	colored = enabled
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// PrettyJSON decides whether results written to f are indented. An explicit
// choice wins; otherwise only terminals get indented output.
func PrettyJSON(f *os.File, explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}
	return IsTerminal(f)
}

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes when the
// status output is a terminal
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colored {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func printLine(s string) {
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintln(out, s)
}

// PrintBanner prints the banner in colour
func PrintBanner() {
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprint(out, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		printLine(Red(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		printLine(Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printLine(Green(msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label string, value string) {
	printLine(fmt.Sprintf("%s: %s", Cyan(label), Yellow(value)))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		printLine(Yellow(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		printLine(Yellow(msg))
	}
}
