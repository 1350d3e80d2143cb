// Package format renders transactions and balance reports as the plain
// text bodies of ntfy notifications.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xb10c/block-alert/src/types"
)

// TimestampLayout renders e.g. 2024/8/5 05:00.
const TimestampLayout = "2006/1/2 15:04"

var typeEmoji = map[types.TransactionType]string{
	types.Received: "💵",
	types.Sent:     "💸",
	types.Unknown:  "❓",
}

var statusEmoji = map[types.TransactionStatus]string{
	types.Confirmed:   "✅",
	types.Unconfirmed: "⏳",
}

// Shorten keeps the first head and the last tail bytes of s.
func Shorten(s string, head, tail int) string {
	if head > len(s) {
		head = len(s)
	}
	if tail > len(s) {
		tail = len(s)
	}
	return s[:head] + "..." + s[len(s)-tail:]
}

// Timestamp renders unix seconds in loc.
func Timestamp(unix int64, loc *time.Location) string {
	return time.Unix(unix, 0).In(loc).Format(TimestampLayout)
}

// BTC renders satoshis as a BTC amount without trailing zeros.
func BTC(sats int64) string {
	return decimal.New(sats, -8).String()
}

// Transaction renders an analysis with its timestamp in local time.
func Transaction(a types.TransactionAnalysis) string {
	amount := decimal.NewFromFloat(a.Amount).Abs().String() + " BTC"
	if a.Type == types.Sent {
		amount += " (fees included)"
	}

	lines := []string{
		fmt.Sprintf("📝 TXID: %s", Shorten(a.TxID, 10, 10)),
		fmt.Sprintf("├─ %s Status: %s", statusEmoji[a.Status], a.Status),
		fmt.Sprintf("├─ %s Type: %s", typeEmoji[a.Type], a.Type),
		fmt.Sprintf("├─ 💰 Amount: %s", amount),
		fmt.Sprintf("├─ 🕒 Timestamp: %s", Timestamp(a.Timestamp, time.Local)),
		fmt.Sprintf("└─ 🔑 XPUB: %s", Shorten(a.XPub, 10, 8)),
	}
	return strings.Join(lines, "\n")
}

// BalanceReport renders per-address balances of a UTXO snapshot as a tree
// followed by the totals.
func BalanceReport(s types.UtxoSnapshot) string {
	var b strings.Builder
	b.WriteString("🔍 Balance Report\n\n")
	fmt.Fprintf(&b, "🔑 %s\n", Shorten(s.DerivationStrategy, 10, 8))

	balances := s.AddressBalances()
	for i, addr := range balances {
		branch, indent := "├", "│"
		if i == len(balances)-1 {
			branch, indent = "└", " "
		}
		fmt.Fprintf(&b, " │\n %s─📌 %s\n", branch, Shorten(addr.Address, 8, 8))
		fmt.Fprintf(&b, " %s  ├─ Unconfirmed: %s BTC\n", indent, BTC(addr.Unconfirmed))
		fmt.Fprintf(&b, " %s  └─ Confirmed: %s BTC\n", indent, BTC(addr.Confirmed))
	}

	unconfirmed, confirmed := s.Totals()
	fmt.Fprintf(&b, " │\n ├─ ⏳ Total Unconfirmed: %s BTC\n", BTC(unconfirmed))
	fmt.Fprintf(&b, " └─ ✅ Total Confirmed: %s BTC\n\n", BTC(confirmed))
	return b.String()
}
