package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/0xb10c/block-alert/src/types"
)

const testXPub = "xpub6CUGRUonZSQ4TWtTMmzXdrXDtypWKiKrhko4egpiMZbpiaQL2jkwSB1icqYh2cfDfVxdx4df189oLKnC5fSwqPfgyP3hooxujYzAu3fDVmz"

func TestShorten(t *testing.T) {
	assert.Equal(t, "abc123def4...c123def456", Shorten("abc123def456", 10, 10))
	assert.Equal(t, "xpub6CUGRU...Au3fDVmz", Shorten(testXPub, 10, 8))
	assert.Equal(t, "ab...ab", Shorten("ab", 10, 8))
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, "2024/8/5 05:00", Timestamp(1722834003, time.UTC))

	zone := time.FixedZone("UTC+2", 2*60*60)
	assert.Equal(t, "2024/8/5 07:00", Timestamp(1722834003, zone))
}

func TestBTC(t *testing.T) {
	tests := map[int64]string{
		0:          "0",
		1:          "0.00000001",
		50000000:   "0.5",
		100000000:  "1",
		123456789:  "1.23456789",
		-150000000: "-1.5",
	}
	for sats, expected := range tests {
		assert.Equal(t, expected, BTC(sats))
	}
}

func TestTransaction(t *testing.T) {
	tests := []struct {
		name     string
		analysis types.TransactionAnalysis
		expected string
	}{
		{
			name: "received",
			analysis: types.TransactionAnalysis{
				XPub:      testXPub,
				Type:      types.Received,
				Amount:    1,
				Status:    types.Confirmed,
				TxID:      "abc123def456",
				Timestamp: 1722834003,
			},
			expected: "📝 TXID: abc123def4...c123def456\n" +
				"├─ ✅ Status: Confirmed\n" +
				"├─ 💵 Type: Received\n" +
				"├─ 💰 Amount: 1 BTC\n" +
				"├─ 🕒 Timestamp: " + Timestamp(1722834003, time.Local) + "\n" +
				"└─ 🔑 XPUB: xpub6CUGRU...Au3fDVmz",
		},
		{
			name: "sent",
			analysis: types.TransactionAnalysis{
				XPub:      testXPub,
				Type:      types.Sent,
				Amount:    -1.5,
				Status:    types.Unconfirmed,
				TxID:      "def456abc123",
				Timestamp: 1722834004,
			},
			expected: "📝 TXID: def456abc1...f456abc123\n" +
				"├─ ⏳ Status: Unconfirmed\n" +
				"├─ 💸 Type: Sent\n" +
				"├─ 💰 Amount: 1.5 BTC (fees included)\n" +
				"├─ 🕒 Timestamp: " + Timestamp(1722834004, time.Local) + "\n" +
				"└─ 🔑 XPUB: xpub6CUGRU...Au3fDVmz",
		},
		{
			name: "unknown",
			analysis: types.TransactionAnalysis{
				XPub:   testXPub,
				Type:   types.Unknown,
				Status: types.Unconfirmed,
				TxID:   "0000000000ffffffffff",
			},
			expected: "📝 TXID: 0000000000...ffffffffff\n" +
				"├─ ⏳ Status: Unconfirmed\n" +
				"├─ ❓ Type: Unknown\n" +
				"├─ 💰 Amount: 0 BTC\n" +
				"├─ 🕒 Timestamp: " + Timestamp(0, time.Local) + "\n" +
				"└─ 🔑 XPUB: xpub6CUGRU...Au3fDVmz",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Transaction(tc.analysis))
		})
	}
}

func TestBalanceReport(t *testing.T) {
	snapshot := types.UtxoSnapshot{
		DerivationStrategy: testXPub,
		Confirmed: types.UtxoSet{Utxos: []types.Utxo{
			{Address: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", Value: 100000000, Confirmations: 1},
		}},
		Unconfirmed: types.UtxoSet{Utxos: []types.Utxo{
			{Address: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", Value: 50000000, Confirmations: 0},
		}},
	}

	expected := "🔍 Balance Report\n\n" +
		"🔑 xpub6CUGRU...Au3fDVmz\n" +
		" │\n" +
		" └─📌 bc1qar0s...zzwf5mdq\n" +
		"    ├─ Unconfirmed: 0.5 BTC\n" +
		"    └─ Confirmed: 1 BTC\n" +
		" │\n" +
		" ├─ ⏳ Total Unconfirmed: 0.5 BTC\n" +
		" └─ ✅ Total Confirmed: 1 BTC\n\n"

	assert.Equal(t, expected, BalanceReport(snapshot))
}

func TestBalanceReport_MultipleAddresses(t *testing.T) {
	snapshot := types.UtxoSnapshot{
		DerivationStrategy: testXPub,
		Confirmed: types.UtxoSet{Utxos: []types.Utxo{
			{Address: "bc1qfirst000000000000000000000000000000001", Value: 30000, Confirmations: 3},
			{Address: "bc1qsecond00000000000000000000000000000002", Value: 70000, Confirmations: 1},
		}},
	}

	expected := "🔍 Balance Report\n\n" +
		"🔑 xpub6CUGRU...Au3fDVmz\n" +
		" │\n" +
		" ├─📌 bc1qfirs...00000001\n" +
		" │  ├─ Unconfirmed: 0 BTC\n" +
		" │  └─ Confirmed: 0.0003 BTC\n" +
		" │\n" +
		" └─📌 bc1qseco...00000002\n" +
		"    ├─ Unconfirmed: 0 BTC\n" +
		"    └─ Confirmed: 0.0007 BTC\n" +
		" │\n" +
		" ├─ ⏳ Total Unconfirmed: 0 BTC\n" +
		" └─ ✅ Total Confirmed: 0.001 BTC\n\n"

	assert.Equal(t, expected, BalanceReport(snapshot))
}

func TestBalanceReport_Empty(t *testing.T) {
	expected := "🔍 Balance Report\n\n" +
		"🔑 xpub6CUGRU...Au3fDVmz\n" +
		" │\n" +
		" ├─ ⏳ Total Unconfirmed: 0 BTC\n" +
		" └─ ✅ Total Confirmed: 0 BTC\n\n"

	assert.Equal(t, expected, BalanceReport(types.UtxoSnapshot{DerivationStrategy: testXPub}))
}
