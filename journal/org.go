package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/cryptosim/ledger"
)

// FormatFillOrg renders a fill as an Org-mode block with the facts in a
// PROPERTIES drawer and an empty Review heading for notes.
func FormatFillOrg(fl ledger.Fill) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** %s %s (%s)\n", fl.Side, fl.Instrument, shortID(fl.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":FILL_ID: %s\n", fl.ID)
	fmt.Fprintf(&b, ":POSITION_ID: %s\n", fl.PositionID)
	fmt.Fprintf(&b, ":INSTRUMENT: %s\n", fl.Instrument.Key())
	fmt.Fprintf(&b, ":SIDE: %s\n", fl.Side)
	fmt.Fprintf(&b, ":QUANTITY: %.8f\n", fl.Quantity)
	fmt.Fprintf(&b, ":PRICE: %.8f\n", fl.Price)
	fmt.Fprintf(&b, ":COMMISSION: %.8f\n", fl.Commission)
	fmt.Fprintf(&b, ":TIME: %s\n", fl.Time.UTC().Format(time.RFC3339))
	if fl.RealizedPnL != nil {
		fmt.Fprintf(&b, ":REALIZED_PNL: %.2f\n", *fl.RealizedPnL)
	}
	fmt.Fprintf(&b, ":REASON: %s\n", fl.Reason)
	b.WriteString(":END:\n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatFillsOrg renders multiple fills separated by blank lines.
func FormatFillsOrg(fills []ledger.Fill) string {
	var b strings.Builder
	for i, fl := range fills {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatFillOrg(fl))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
