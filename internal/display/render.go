// Package display owns the terminal: a fixed-cadence render loop painting
// read-only session snapshots, suspended while a modal prompt has the
// keyboard.
package display

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/takershield/observer/internal/session"
	"github.com/takershield/observer/internal/version"
)

// noQuoteLabels maps trigger reasons to the short annotation next to the
// NO_QUOTE signal.
var noQuoteLabels = map[string]string{
	"time_to_event":   "ttc ▼",
	"spread_blowout":  "sprd ▲",
	"high_volatility": "p99 ▲",
	"ttc_spread":      "ttc+sprd",
	"vol_spread":      "p99+sprd",
	"no_book":         "no book",
	"one_sided":       "1-side",
	"market_closed":   "closed",
	"ml_risk":         "ml",
}

// cautionLabels maps caution reasons to their short annotations.
var cautionLabels = map[string]string{
	"spread_elevated":    "sprd ▲",
	"spread_widening":    "sprd ▲",
	"volatility_rising":  "vol ▲",
	"depth_dropping":     "depth ▼",
	"time_liquidity":     "late+liq",
	"time_approaching":   "ttc ▼",
	"adverse_likelihood": "ml ▲",
}

// triggerLabels maps risk-event trigger reasons to their column labels.
var triggerLabels = map[string]string{
	"spread_blowout":  "sprd ▲",
	"time_to_event":   "ttc ▼",
	"ttc_spread":      "ttc+sprd",
	"vol_spread":      "vol+sprd",
	"high_volatility": "vol ▲",
	"time_liquidity":  "late+liq",
	"no_book":         "no book",
	"one_sided":       "1-side",
	"market_closed":   "closed",
}

const footerKeys = "[a]dd  [r]emove  [d]emo  [c]lear  [h]elp  [q]uit"

// Terminal renders snapshots as full-screen frames. The terminal is in raw
// mode, so every line must end with \r\n.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer

	help atomic.Bool
}

// NewTerminal creates a presenter writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// ToggleHelp flips the help overlay. Safe to call from the key loop.
func (t *Terminal) ToggleHelp() {
	t.help.Store(!t.help.Load())
}

// Present paints one full frame.
func (t *Terminal) Present(snap session.Snapshot) {
	var frame string
	if t.help.Load() {
		frame = t.renderHelp()
	} else {
		frame = t.renderDashboard(snap)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Home the cursor, paint, clear whatever the previous frame left below.
	io.WriteString(t.out, "\x1b[H")
	io.WriteString(t.out, strings.ReplaceAll(frame, "\n", "\x1b[K\r\n"))
	io.WriteString(t.out, "\x1b[K\r\n\x1b[J")
}

func (t *Terminal) renderDashboard(snap session.Snapshot) string {
	var b strings.Builder

	b.WriteString(t.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(renderMarketTable(snap))
	b.WriteString("\n")
	b.WriteString(sepStyle.Render(strings.Repeat("─", 110)))
	b.WriteString("\n")
	b.WriteString(renderEventsTable(snap))
	b.WriteString("\n")
	b.WriteString(renderStats(snap))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Move: worst @30s/2m/5m. ▲ NO hurt, ▼ YES hurt. (Y/N)=¢ vs t0_mid"))
	b.WriteString("\n\n")
	b.WriteString(renderFooter(snap))

	return b.String()
}

func (t *Terminal) renderHeader() string {
	return headerStyle.Render("🛡️ TakerShield Observer " + version.Version)
}

// ---------------------------------------------------------------------------
// Market table
// ---------------------------------------------------------------------------

func renderMarketTable(snap session.Snapshot) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("📊 Market Status"))
	b.WriteString("\n")
	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf(
		"%-28s %6s %6s %7s %6s %8s  %-26s %10s %5s",
		"Ticker", "Bid", "Ask", "Mid", "Spread", "Depth", "Signal", "Closes", "p99")))
	b.WriteString("\n")

	if len(snap.Markets) == 0 {
		b.WriteString(dimStyle.Render("Waiting for data..."))
		return b.String()
	}

	for _, m := range snap.Markets {
		depth := dimStyle.Render("-")
		if m.Depth > 0 {
			depth = depthStyle(m.Depth).Render(fmt.Sprintf("%d", m.Depth))
		}

		mid := "-"
		if m.Mid != 0 {
			mid = fmt.Sprintf("%.1f", m.Mid)
		}

		fmt.Fprintf(&b, "%-28s %6d %6d %7s %6d %8s  %-26s %10s %5.1f\n",
			tail(m.Ticker, 28),
			m.Bid, m.Ask, mid, m.Spread,
			padANSI(depth, 8),
			padANSI(marketSignal(m, snap), 26),
			padANSI(formatClose(m.TimeToCloseS, m.TimeType), 10),
			m.P99Move,
		)
	}

	return strings.TrimRight(b.String(), "\n")
}

// marketSignal renders the regime cell with its reason annotation.
func marketSignal(m session.MarketSnapshot, snap session.Snapshot) string {
	switch m.Regime {
	case "NO_QUOTE":
		label := ""
		if len(m.TriggerReasons) > 0 {
			label = noQuoteLabels[m.TriggerReasons[0]]
			if label == "" {
				label = trim(m.TriggerReasons[0], 6)
			}
		}
		s := noQuoteStyle.Render("🛑 NO_QUOTE")
		if label != "" {
			s += " " + dimStyle.Render("( "+label+" )")
		}
		return s

	case "CAUTION":
		label := ""
		if len(m.CautionReasons) > 0 {
			label = cautionLabels[m.CautionReasons[0]]
			if label == "" {
				label = trim(m.CautionReasons[0], 6)
			}
		}
		s := cautionStyle.Render("⚠️ CAUTION")
		if label != "" {
			s += " " + dimStyle.Render("( "+label+" )")
		}
		return s

	case "SAFE":
		if at, ok := snap.ClearedAt[m.Ticker]; ok && snap.Now.Sub(at) < 5*time.Second {
			return safeStyle.Render("✅ SAFE") + " " + clearedStyle.Render("(cleared)")
		}
		return safeStyle.Render("✅ SAFE")

	default:
		return regimeStyle(string(m.Regime)).Render(string(m.Regime))
	}
}

// formatClose renders time-to-close: CLOSED for settled markets, OT when the
// market is past its expected close but still active.
func formatClose(seconds float64, timeType string) string {
	if timeType == "closed" {
		return badStyle.Render("CLOSED")
	}
	if seconds < 0 {
		return warnStyle.Render("OT")
	}
	switch {
	case seconds > 86400*7:
		return dimStyle.Render(fmt.Sprintf("%dd", int(seconds/86400)))
	case seconds > 86400:
		return fmt.Sprintf("%dd %dh", int(seconds/86400), int(math.Mod(seconds, 86400)/3600))
	case seconds > 3600:
		return fmt.Sprintf("%dh %dm", int(seconds/3600), int(math.Mod(seconds, 3600)/60))
	default:
		return fmt.Sprintf("%d:%02d", int(seconds/60), int(seconds)%60)
	}
}

// ---------------------------------------------------------------------------
// Events table
// ---------------------------------------------------------------------------

func renderEventsTable(snap session.Snapshot) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🚨 Risk Events"))
	b.WriteString("\n")
	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf(
		"%-26s %-14s %-12s %6s %8s  %s",
		"Ticker", "Trigger", "Action", "Age", "Shielded", "Move (30s/2m/5m)")))
	b.WriteString("\n")

	if len(snap.Events) == 0 && len(snap.LegacyEvents) == 0 {
		b.WriteString(dimStyle.Render("No events yet"))
		return b.String()
	}

	action := badStyle.Render("🛑 CANCEL")

	for _, ev := range snap.Events {
		move := formatMoveWindow(ev.AdverseYes30s, ev.AdverseNo30s) + "/" +
			formatMoveWindow(ev.AdverseYes2m, ev.AdverseNo2m) + "/" +
			formatMoveWindow(ev.AdverseYes5m, ev.AdverseNo5m)

		fmt.Fprintf(&b, "%-26s %-14s %-12s %6s %8s  %s\n",
			tail(ev.Ticker, 26),
			padANSI(triggerStyle.Render(formatTriggers(ev.TriggerReasons)), 14),
			padANSI(action, 12),
			padANSI(formatAge(ev), 6),
			padANSI(formatShield(ev), 8),
			move,
		)
	}

	// Legacy would-cancel fallback: shown only when no server events exist.
	for _, ev := range snap.LegacyEvents {
		fmt.Fprintf(&b, "%-26s %-14s %-12s %6s %8s  %s\n",
			tail(ev.Ticker, 26),
			padANSI(triggerStyle.Render(formatTriggers(ev.TriggerReasons)), 14),
			padANSI(action, 12),
			"-", "-", dimStyle.Render("—"),
		)
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatTriggers(reasons []string) string {
	if len(reasons) == 0 {
		return "?"
	}
	labels := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if l, ok := triggerLabels[r]; ok {
			labels = append(labels, l)
		} else {
			labels = append(labels, trim(r, 6))
		}
	}
	return strings.Join(labels, ", ")
}

// formatMoveWindow renders one horizon: {arrow}{headline}({down}/{up}) where
// down hurts the YES quoter and up hurts the NO quoter.
func formatMoveWindow(down, up float64) string {
	headline := math.Max(down, up)
	if headline == 0 {
		return dimStyle.Render("—")
	}

	arrow := "◆"
	if down > up {
		arrow = "▼"
	} else if up > down {
		arrow = "▲"
	}

	return moveStyle(headline).Render(fmt.Sprintf("%s%.0f", arrow, headline)) +
		fmt.Sprintf("(%.0f/%.0f)", down, up)
}

func formatAge(ev session.VisibleEvent) string {
	if ev.TrackingComplete {
		return goodStyle.Render("done")
	}
	sec := int(ev.Age.Seconds())
	switch {
	case sec < 60:
		return fmt.Sprintf("%ds", sec)
	case sec < 300:
		return fmt.Sprintf("%dm%02ds", sec/60, sec%60)
	default:
		return goodStyle.Render("5m+")
	}
}

func formatShield(ev session.VisibleEvent) string {
	switch ev.Shield {
	case session.ShieldOngoing:
		return warnStyle.Render("ongoing")
	case session.ShieldCleared:
		sec := int(ev.ShieldedFor.Seconds())
		if sec < 60 {
			return goodStyle.Render(fmt.Sprintf("%ds", sec))
		}
		return goodStyle.Render(fmt.Sprintf("%dm%02ds", sec/60, sec%60))
	default:
		return dimStyle.Render("-")
	}
}

// ---------------------------------------------------------------------------
// Stats and latency
// ---------------------------------------------------------------------------

func renderStats(snap session.Snapshot) string {
	var b strings.Builder

	b.WriteString(dimStyle.Render("🔒 READ-ONLY (no keys)"))
	b.WriteString("\n")

	if snap.Stale {
		b.WriteString(staleStyle.Render("⚠️  DATA STALE"))
		b.WriteString("\n")
	}

	conn := badStyle.Render("Disconnected")
	if snap.Facts.Connected {
		conn = goodStyle.Render("Connected")
	}
	b.WriteString("🔗 " + conn)

	if !snap.Facts.ConnectedAt.IsZero() {
		fmt.Fprintf(&b, "   ⏱️ Uptime: %s", formatDuration(snap.Now.Sub(snap.Facts.ConnectedAt).Seconds()))
	}
	fmt.Fprintf(&b, "   📨 Updates: %d", snap.Facts.UpdatesReceived)
	if snap.Facts.DecodeDrops > 0 {
		fmt.Fprintf(&b, "   🗑 Dropped: %d", snap.Facts.DecodeDrops)
	}
	if !snap.Facts.LastHeartbeat.IsZero() {
		fmt.Fprintf(&b, "   💓 Heartbeat: %.1fs ago", snap.Now.Sub(snap.Facts.LastHeartbeat).Seconds())
	}
	if snap.CancelCount > 0 {
		b.WriteString("   🚨 Cancels: " + badStyle.Render(fmt.Sprintf("%d", snap.CancelCount)))
		b.WriteString("   💰 Avoided: " + goodStyle.Render(fmt.Sprintf("%.0f¢", snap.AvoidedCents)))
	}
	b.WriteString("\n")

	// Latency line from the most recent market update. WS latency is kept
	// signed in state; clock skew makes the abs value the honest display.
	var poll, compute float64
	if len(snap.Markets) > 0 {
		last := snap.Markets[len(snap.Markets)-1]
		poll = last.PollLatencyMs
		compute = last.ComputeLatencyMs
	}
	ws := math.Abs(snap.Facts.WSLatencyMs)

	b.WriteString(dimStyle.Render("📡 Poll: "))
	b.WriteString(latencyStyle(poll, 100, 200).Render(fmt.Sprintf("%.0fms", poll)))
	b.WriteString(dimStyle.Render("  🧠 Compute: "))
	b.WriteString(latencyStyle(compute, 10, 50).Render(fmt.Sprintf("%.1fms", compute)))
	b.WriteString(dimStyle.Render("  🌐 WS: "))
	b.WriteString(latencyStyle(ws, 50, 100).Render(fmt.Sprintf("%.0fms", ws)))

	return b.String()
}

func renderFooter(snap session.Snapshot) string {
	if snap.Status != "" {
		return statusStyle.Render(snap.Status) + footerStyle.Render("  |  "+footerKeys)
	}
	return footerStyle.Render(footerKeys)
}

// ---------------------------------------------------------------------------
// Help overlay
// ---------------------------------------------------------------------------

func (t *Terminal) renderHelp() string {
	var b strings.Builder

	b.WriteString(t.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(headerStyle.Render("TakerShield – Risk Signals (30s overview)"))
	b.WriteString("\n\n")

	b.WriteString(helpHeadingStyle.Render("SIGNALS"))
	b.WriteString("\n")
	b.WriteString("  " + safeStyle.Render("SAFE     ") + " Market conditions normal. Quoting is reasonable.\n")
	b.WriteString("  " + cautionStyle.Render("CAUTION  ") + " Risk rising. Consider widening quotes or reducing size.\n")
	b.WriteString("  " + noQuoteStyle.Render("NO_QUOTE ") + " High adverse-selection risk. Do not quote.\n\n")

	b.WriteString(helpHeadingStyle.Render("MOVE COLUMN"))
	b.WriteString("\n")
	b.WriteString("  • Shows worst price move AFTER a NO_QUOTE signal.\n")
	b.WriteString("  • Windows: 30s / 2m / 5m from trigger time.\n")
	b.WriteString("  • ▼ means mid moved DOWN (YES side would lose).\n")
	b.WriteString("  • ▲ means mid moved UP (NO side would lose).\n")
	b.WriteString("  • Numbers are cents vs mid at trigger (t0_mid).\n")
	b.WriteString("  • Example: ▼4¢ means YES quotes would be picked off by 4¢.\n\n")

	b.WriteString(helpHeadingStyle.Render("WHAT THIS IS"))
	b.WriteString("\n")
	b.WriteString("  • Shadow-mode risk observer.\n")
	b.WriteString("  • Shows what you avoided by standing down.\n")
	b.WriteString("  • Not trading advice.\n\n")

	b.WriteString(dimStyle.Render("Press [h] to close help."))

	return b.String()
}

// ---------------------------------------------------------------------------
// Formatting helpers
// ---------------------------------------------------------------------------

// formatDuration renders seconds as a compact human duration.
func formatDuration(seconds float64) string {
	switch {
	case seconds > 86400:
		return fmt.Sprintf("%dd %dh", int(seconds/86400), int(math.Mod(seconds, 86400)/3600))
	case seconds > 3600:
		return fmt.Sprintf("%dh %dm", int(seconds/3600), int(math.Mod(seconds, 3600)/60))
	default:
		return fmt.Sprintf("%d:%02d", int(seconds/60), int(math.Max(seconds, 0))%60)
	}
}

// tail keeps the last n characters of a ticker, the distinguishing part.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func trim(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// padANSI pads a styled cell to a visible width, since %*s counts escape
// bytes as width.
func padANSI(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
