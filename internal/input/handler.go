// Package input owns the keyboard: single-key commands read from a raw
// terminal, plus the modal add/remove prompts that temporarily hand the
// terminal back to cooked mode.
package input

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/takershield/observer/internal/command"
	"github.com/takershield/observer/internal/display"
	"github.com/takershield/observer/internal/protocol"
	"github.com/takershield/observer/internal/session"
)

// Handler runs the blocking key loop.
type Handler struct {
	dispatcher *command.Dispatcher
	state      *session.State
	mode       *display.Mode
	terminal   *display.Terminal
	logger     *slog.Logger

	in  *os.File
	out *os.File
}

// NewHandler creates a Handler reading stdin and prompting on stdout.
func NewHandler(dispatcher *command.Dispatcher, state *session.State, mode *display.Mode, terminal *display.Terminal, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		dispatcher: dispatcher,
		state:      state,
		mode:       mode,
		terminal:   terminal,
		logger:     logger.With("component", "input"),
		in:         os.Stdin,
		out:        os.Stdout,
	}
}

// Run puts the terminal into raw mode and processes keys until quit or
// context cancellation. Returning restores the terminal.
func (h *Handler) Run(ctx context.Context) error {
	fd := int(h.in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	reader := bufio.NewReader(h.in)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ch, err := reader.ReadByte()
		if err != nil {
			return err
		}

		switch ch {
		case 'q', 3: // 'q' or Ctrl-C
			return nil

		case 'h':
			h.terminal.ToggleHelp()

		case 'c':
			h.state.Clear()

		case 'd':
			h.dispatcher.Demo()

		case 'a':
			h.addModal(ctx, fd, oldState, reader)

		case 'r':
			h.removeModal(ctx, fd, oldState, reader)
		}
	}
}

// addModal prompts for a ticker or Kalshi URL. A URL triggers a correlated
// search; multiple hits offer a numbered selection with 0 meaning all.
func (h *Handler) addModal(ctx context.Context, fd int, rawState *term.State, reader *bufio.Reader) {
	release := h.mode.EnterModal()
	defer release()

	term.Restore(fd, rawState)
	defer term.MakeRaw(fd)

	fmt.Fprintln(h.out, "\nAdd Market")
	fmt.Fprintln(h.out, "Paste Kalshi URL or enter ticker directly:")

	input := h.prompt(reader, "URL or ticker: ")
	if input == "" {
		return
	}

	if !strings.Contains(strings.ToLower(input), "kalshi.com") {
		h.dispatcher.AddTicker(strings.ToUpper(input))
		return
	}

	// URL path ends with the event slug; search the brain for its contracts.
	parts := strings.Split(strings.TrimRight(input, "/"), "/")
	query := strings.ToUpper(parts[len(parts)-1])

	fmt.Fprintf(h.out, "Searching for: %s...\n", query)
	results := h.dispatcher.Search(ctx, query)

	switch {
	case len(results) == 0:
		fmt.Fprintf(h.out, "No contracts found matching: %s\n", query)

	case len(results) == 1:
		fmt.Fprintf(h.out, "Found: %s\n", results[0].Ticker)
		h.dispatcher.AddTicker(results[0].Ticker)

	default:
		h.selectAndAdd(reader, results)
	}
}

// selectAndAdd shows a numbered contract list and adds the selection.
func (h *Handler) selectAndAdd(reader *bufio.Reader, results []protocol.SearchResult) {
	fmt.Fprintf(h.out, "\nEvent has %d contracts:\n", len(results))
	shown := results
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for i, r := range shown {
		if r.Subtitle != "" {
			fmt.Fprintf(h.out, "  %d. %s (%s)\n", i+1, r.Ticker, r.Subtitle)
		} else {
			fmt.Fprintf(h.out, "  %d. %s\n", i+1, r.Ticker)
		}
	}
	if len(results) > 10 {
		fmt.Fprintf(h.out, "  ... and %d more\n", len(results)-10)
	}
	label := "all"
	if len(results) == 2 {
		label = "both"
	}
	fmt.Fprintf(h.out, "  0. All (observe %s)\n", label)

	choice := h.prompt(reader, "Select contract to observe (0=all): ")
	if choice == "0" {
		for _, r := range results {
			h.dispatcher.AddTicker(r.Ticker)
		}
		fmt.Fprintf(h.out, "Added %d contracts\n", len(results))
		return
	}
	if idx, err := strconv.Atoi(choice); err == nil && idx >= 1 && idx <= len(results) {
		h.dispatcher.AddTicker(results[idx-1].Ticker)
	}
}

// removeModal shows the watched tickers and removes the selection, with 0
// meaning all.
func (h *Handler) removeModal(_ context.Context, fd int, rawState *term.State, reader *bufio.Reader) {
	release := h.mode.EnterModal()
	defer release()

	term.Restore(fd, rawState)
	defer term.MakeRaw(fd)

	watched := h.state.WatchedTickers()
	if len(watched) == 0 {
		fmt.Fprintln(h.out, "\nNo tickers being watched")
		return
	}

	fmt.Fprintln(h.out, "\nCurrently watching:")
	for i, t := range watched {
		fmt.Fprintf(h.out, "  %d. %s\n", i+1, t)
	}
	fmt.Fprintln(h.out, "  0. Remove all")

	choice := h.prompt(reader, "Select contract to remove (0=all): ")
	switch {
	case choice == "0":
		for _, t := range watched {
			h.dispatcher.RemoveTicker(t)
			h.state.RemoveMarket(t)
		}
		fmt.Fprintf(h.out, "Removed %d contracts\n", len(watched))

	case choice != "":
		if idx, err := strconv.Atoi(choice); err == nil {
			if idx >= 1 && idx <= len(watched) {
				h.dispatcher.RemoveTicker(watched[idx-1])
			}
		} else {
			h.dispatcher.RemoveTicker(strings.ToUpper(choice))
		}
	}
}

// prompt reads one cooked-mode line.
func (h *Handler) prompt(reader *bufio.Reader, label string) string {
	fmt.Fprint(h.out, label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}
