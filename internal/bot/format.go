package bot

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"betledger/internal/ledger"
	"betledger/internal/stats"
)

const (
	newUsage  = "`/new date|event|stake|odds[|result]`"
	editUsage = "`/edit date|event|stake|odds|result`"

	// maxButtons is the number of bet buttons on one picker page
	maxButtons = 20
	// listPageSize is the number of rows on one /list page
	listPageSize = 15
	// listEventRunes bounds the event name in a list row so a full page
	// stays under Telegram's message limit
	listEventRunes = 60
	// messageLimit is the longest text Telegram accepts in one message
	messageLimit = 4096
	// chartWidth is the longest bar drawn by formatSeries
	chartWidth = 12
)

var errUsage = errors.New("expected date|event|stake|odds[|result]")

var markdownEscaper = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// escapeMarkdown escapes special characters for Telegram Markdown mode
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// parseBetArgs splits a command payload of pipe-separated fields
func parseBetArgs(payload string) (ledger.RawFields, error) {
	parts := strings.Split(payload, "|")
	if len(parts) < 4 || len(parts) > 5 {
		return ledger.RawFields{}, errUsage
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	raw := ledger.RawFields{
		Date:  parts[0],
		Event: parts[1],
		Stake: parts[2],
		Odds:  parts[3],
	}
	if len(parts) == 5 {
		raw.Result = parts[4]
	}
	return raw, nil
}

// commandText returns the message text after the leading command token.
// Unlike telebot's payload it keeps every line.
func commandText(text string) string {
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}

// shorten cuts s to at most n runes
func shorten(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

// codeSpan makes s safe inside a Markdown code span, which has no escapes
func codeSpan(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}

// betArgs renders b back into the form parseBetArgs reads
func betArgs(b ledger.Bet) string {
	return strings.Join([]string{
		b.Date.String(), b.Event, b.Stake.String(), b.Odds.String(), string(b.Result),
	}, "|")
}

func resultEmoji(r ledger.Result) string {
	switch r {
	case ledger.ResultWin:
		return "✅"
	case ledger.ResultLose:
		return "❌"
	default:
		return "⏳"
	}
}

func signed(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

// formatBet renders one list row
func formatBet(i int, b ledger.Bet) string {
	line := fmt.Sprintf("*%d.* %s %s %s\n   💵 %s @ %s",
		i+1,
		resultEmoji(b.Result),
		b.Date.Short(),
		escapeMarkdown(shorten(b.Event, listEventRunes)),
		b.Stake.String(),
		b.Odds.String())
	if p, ok := b.Profit(); ok {
		line += " | " + signed(p)
	}
	return line
}

// pageCount is the number of pages needed to show n rows
func pageCount(n, size int) int {
	if n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

// formatBetList renders one page of the filtered list with tab counts in
// the header. page is 1-based and clamped to the available pages.
func formatBetList(f ledger.Filter, bets []ledger.Bet, counts stats.Counts, page int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎲 *Bets* (%s)\n", f)
	for _, tab := range ledger.Filters {
		marker := ""
		if tab == f {
			marker = "•"
		}
		fmt.Fprintf(&sb, "%s%s: %d  ", marker, tab, counts.For(tab))
	}
	sb.WriteString("\n\n")

	if len(bets) == 0 {
		sb.WriteString("No bets here yet. Add one with " + newUsage)
		return sb.String()
	}

	pages := pageCount(len(bets), listPageSize)
	page = min(max(page, 1), pages)
	start := (page - 1) * listPageSize
	end := min(start+listPageSize, len(bets))
	for i := start; i < end; i++ {
		sb.WriteString(formatBet(i, bets[i]))
		sb.WriteString("\n")
	}
	if pages > 1 {
		fmt.Fprintf(&sb, "\nPage %d/%d", page, pages)
		if page < pages {
			fmt.Fprintf(&sb, ", next: `/list %s %d`", f, page+1)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatStats renders the summary figures
func formatStats(s stats.Summary) string {
	return fmt.Sprintf("📊 *Stats*\n\n"+
		"Total bets: %d\n"+
		"✅ Wins: %d\n"+
		"❌ Losses: %d\n"+
		"⏳ Pending: %d\n"+
		"💵 Total stake: %s\n"+
		"💰 Net profit: %s\n"+
		"📈 Win rate: %s%%",
		s.Counts.Total,
		s.Counts.Win,
		s.Counts.Lose,
		s.Counts.Pending,
		s.TotalStake.StringFixed(2),
		signed(s.NetProfit),
		s.WinRate.StringFixed(1))
}

// formatSeries renders the cumulative profit as a text chart, one row per day
func formatSeries(points []stats.Point) string {
	if len(points) == 0 {
		return "📉 No settled bets yet."
	}

	peak := decimal.Zero
	for _, p := range points {
		if a := p.Cumulative.Abs(); a.GreaterThan(peak) {
			peak = a
		}
	}

	var sb strings.Builder
	sb.WriteString("📈 *Profit over time*\n\n```\n")
	for _, p := range points {
		bar := 0
		if peak.IsPositive() {
			bar = int(p.Cumulative.Abs().Mul(decimal.NewFromInt(chartWidth)).Div(peak).Round(0).IntPart())
		}
		glyph := "█"
		if p.Cumulative.IsNegative() {
			glyph = "░"
		}
		fmt.Fprintf(&sb, "%s %9s %s\n", p.Label, p.Cumulative.StringFixed(2), strings.Repeat(glyph, bar))
	}
	sb.WriteString("```")
	return sb.String()
}

// buttonLabel is the text of a bet's inline button
func buttonLabel(b ledger.Bet) string {
	return fmt.Sprintf("%s %s %s %s@%s", resultEmoji(b.Result), b.Date.DayMonth(), shorten(b.Event, 24), b.Stake.String(), b.Odds.String())
}
