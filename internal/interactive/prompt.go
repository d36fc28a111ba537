// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/pilgrims/utilup/internal/upgrade"
)

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseYes  Response = iota // Proceed with this item
	ResponseNo                   // Skip this item
	ResponseAll                  // Approve all remaining items
	ResponseQuit                 // Abort
)

// Prompter asks questions on in and writes them to out.
type Prompter struct {
	out        io.Writer
	scanner    *bufio.Scanner
	approveAll bool
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Ask displays a question and reads a y/n/a/q answer. Once the user
// answers "all" every later Ask returns ResponseYes without prompting.
func (p *Prompter) Ask(format string, args ...any) Response {
	if p.approveAll {
		return ResponseYes
	}

	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/n/a/q] ")

	if !p.scanner.Scan() {
		return ResponseQuit
	}

	switch strings.ToLower(strings.TrimSpace(p.scanner.Text())) {
	case "y", "yes":
		return ResponseYes
	case "n", "no":
		return ResponseNo
	case "a", "all":
		p.approveAll = true
		return ResponseAll
	case "q", "quit":
		return ResponseQuit
	default:
		_, _ = fmt.Fprintln(p.out, "Invalid response, skipping.")
		return ResponseNo
	}
}

// Confirm asks a yes/no question. Anything but y or yes, including end of
// input, is a no.
func (p *Prompter) Confirm(format string, args ...any) bool {
	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/n] ")
	if !p.scanner.Scan() {
		return false
	}
	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	return input == "y" || input == "yes"
}

// SelectUpgrades asks about each tool with an update available and
// returns the approved names. proceed is false when the user quits or
// approves nothing.
func (p *Prompter) SelectUpgrades(checks []upgrade.UpdateCheck) (selected []string, proceed bool) {
	skipped := 0
	for _, c := range checks {
		if !c.UpdateAvailable {
			continue
		}
		switch p.Ask("Upgrade %s %s → %s?", c.Name, c.CurrentVersion, c.LatestVersion) {
		case ResponseYes, ResponseAll:
			selected = append(selected, c.Name)
		case ResponseQuit:
			_, _ = fmt.Fprintln(p.out, "\nAborted.")
			return nil, false
		default:
			_, _ = fmt.Fprintf(p.out, "  - Skipped %s\n", c.Name)
			skipped++
		}
	}

	if len(selected) == 0 {
		_, _ = fmt.Fprintln(p.out, "No upgrades selected.")
		return nil, false
	}
	if skipped > 0 {
		_, _ = fmt.Fprintf(p.out, "Upgrading %d tool(s), skipped %d\n", len(selected), skipped)
	}
	return selected, true
}
