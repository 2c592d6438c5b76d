// Package display renders the device side-channel the transaction-stream
// engine (internal/txstream) blocks on: a human-readable summary of each
// entry or finalized transaction id, and the two-button confirm/reject
// gate (spec.md §4.6, §5 "Suspension points").
package display

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
)

// TerminalConfirmer renders summaries to a terminal (or any writer) and
// reads the confirm/reject decision from an input stream. It implements
// internal/txstream.Confirmer.
type TerminalConfirmer struct {
	out    io.Writer
	in     *bufio.Reader
	colors bool
}

// NewTerminalConfirmer builds a TerminalConfirmer over stdout/stdin,
// enabling ANSI color only when stdout is a real terminal (the host
// simulator's two "buttons" are the y/n keys).
func NewTerminalConfirmer() *TerminalConfirmer {
	return &TerminalConfirmer{
		out:    os.Stdout,
		in:     bufio.NewReader(os.Stdin),
		colors: isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// Confirm displays summary and blocks until the user presses the confirm
// (y) or reject (n) button.
func (c *TerminalConfirmer) Confirm(summary string) bool {
	prompt := summary
	if c.colors {
		prompt = color.New(color.FgYellow, color.Bold).Sprint(summary)
	}
	fmt.Fprintf(c.out, "%s\nconfirm [y] / reject [n]: ", prompt)

	for {
		line, err := c.in.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		default:
			fmt.Fprint(c.out, "please press y or n: ")
		}
	}
}

// RenderStreamPlan prints a table of the pending entries before streaming
// begins, so a host operator reviews the whole batch up front (spec.md
// §4.6 names only the per-entry/per-Done prompts; this is a supplemented
// host-side convenience, not a device-side requirement).
func RenderStreamPlan(w io.Writer, inputs []string, fee string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Kind", "Detail"})
	for i, in := range inputs {
		table.Append([]string{fmt.Sprintf("%d", i), "TxIn", in})
	}
	table.Append([]string{fmt.Sprintf("%d", len(inputs)), "Fee", fee})
	table.Render()
}
