package report

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"firestige.xyz/dpsmeter/internal/engine"
	"firestige.xyz/dpsmeter/internal/meter"
)

// Title is appended to the console heading.
const Title = "dpsmeter"

// clearScreen moves the cursor home and clears the terminal.
const clearScreen = "\033[H\033[2J"

var consoleHeader = []string{"NAME", "DPS", "DMG%", "DMG", "DMG RCV", "HIT/s", "COMBO", "MISS%", "CRIT%", "SS%"}

// Console redraws the ranking table at most once per interval, and on
// every state change.
type Console struct {
	out      io.Writer
	interval time.Duration
	clear    bool
	now      func() time.Time

	last      time.Time
	lastState meter.State
	drawn     bool
}

// NewConsole creates a console reporter writing to out. clear redraws
// in place on a terminal.
func NewConsole(out io.Writer, interval time.Duration, clear bool) *Console {
	return &Console{out: out, interval: interval, clear: clear, now: time.Now}
}

func (c *Console) Name() string {
	return "console"
}

func (c *Console) Accept(v engine.View) bool {
	now := c.now()
	if c.drawn && v.State == c.lastState && now.Sub(c.last) < c.interval {
		return false
	}
	c.drawn = true
	c.last = now
	c.lastState = v.State
	return true
}

func (c *Console) Report(_ context.Context, v engine.View) error {
	if c.clear {
		if _, err := io.WriteString(c.out, clearScreen); err != nil {
			return err
		}
	}
	return Render(c.out, v)
}

func (c *Console) Close() error {
	return nil
}

// Render writes the heading and ranking table of v.
func Render(w io.Writer, v engine.View) error {
	if _, err := fmt.Fprintln(w, Heading(v)); err != nil {
		return err
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader(consoleHeader)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(false)
	tw.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, r := range v.Rows {
		tw.Append(formatRow(r, v.Elapsed))
	}
	tw.Render()
	return nil
}

// Heading renders "world - mm:ss - dpsmeter", omitting unknown parts.
func Heading(v engine.View) string {
	var b strings.Builder
	if v.WorldID > 0 {
		b.WriteString(strconv.Itoa(int(v.WorldID)))
		b.WriteString(" - ")
	}
	if !math.IsNaN(v.Elapsed) {
		secs := int(v.Elapsed)
		fmt.Fprintf(&b, "%02d:%02d - ", (secs/60)%60, secs%60)
	}
	b.WriteString(Title)
	if v.State.Suspended() {
		b.WriteString(" [paused]")
	}
	return b.String()
}

func formatRow(r meter.Row, elapsed float64) []string {
	return []string{
		r.Name,
		fmt.Sprintf("%.0fK", r.DPS(elapsed)/1e3),
		percent(r.DamageShare()),
		fmt.Sprintf("%.0fK", float64(r.Stats.DamageDealt)/1e3),
		strconv.FormatUint(r.Stats.DamageReceived, 10),
		fmt.Sprintf("%.2f", r.HitsPerSecond(elapsed)),
		strconv.Itoa(int(r.Stats.MaxCombo)),
		percent(r.MissRate()),
		percent(r.CritRate()),
		percent(r.SpecialRate()),
	}
}

func percent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}
