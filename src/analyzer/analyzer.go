package analyzer

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/0xb10c/block-alert/src/types"
)

// Analyze classifies a wallet transaction for the tracked key xpub. The
// amount is the signed balance change converted from satoshis to BTC.
func Analyze(tx types.TransactionRecord, xpub string) types.TransactionAnalysis {
	return types.TransactionAnalysis{
		XPub:      xpub,
		Type:      classify(tx.BalanceChange),
		Amount:    btcutil.Amount(tx.BalanceChange).ToBTC(),
		Status:    status(tx.Confirmations),
		TxID:      tx.TransactionID,
		Timestamp: tx.Timestamp,
	}
}

func classify(balanceChange int64) types.TransactionType {
	switch {
	case balanceChange > 0:
		return types.Received
	case balanceChange < 0:
		return types.Sent
	default:
		return types.Unknown
	}
}

func status(confirmations int64) types.TransactionStatus {
	if confirmations > 0 {
		return types.Confirmed
	}
	return types.Unconfirmed
}
