package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/0xb10c/block-alert/src/types"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name          string
		balanceChange int64
		confirmations int64
		wantType      types.TransactionType
		wantStatus    types.TransactionStatus
	}{
		{"received unconfirmed", 10000, 0, types.Received, types.Unconfirmed},
		{"received confirmed", 150000000, 3, types.Received, types.Confirmed},
		{"sent unconfirmed", -25000, 0, types.Sent, types.Unconfirmed},
		{"sent confirmed", -1, 1, types.Sent, types.Confirmed},
		{"zero change", 0, 0, types.Unknown, types.Unconfirmed},
		{"zero change confirmed", 0, 6, types.Unknown, types.Confirmed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tx := types.TransactionRecord{
				TransactionID: "txid1",
				Confirmations: tc.confirmations,
				BalanceChange: tc.balanceChange,
				Timestamp:     1700000000,
			}

			analysis := Analyze(tx, "xpub1")

			assert.Equal(t, "xpub1", analysis.XPub)
			assert.Equal(t, tc.wantType, analysis.Type)
			assert.Equal(t, tc.wantStatus, analysis.Status)
			assert.Equal(t, float64(tc.balanceChange)/1e8, analysis.Amount)
			assert.Equal(t, "txid1", analysis.TxID)
			assert.Equal(t, int64(1700000000), analysis.Timestamp)
		})
	}
}

func TestAnalyze_AmountIsExactDivision(t *testing.T) {
	for _, sats := range []int64{1, -1, 12345, -987654321, 2100000000000000} {
		analysis := Analyze(types.TransactionRecord{BalanceChange: sats}, "")
		assert.Equal(t, float64(sats)/1e8, analysis.Amount, "sats=%d", sats)
	}
}
