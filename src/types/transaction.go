package types

// TransactionRecord represents a wallet transaction as returned by
// NBXplorer's `/derivations/{strategy}/transactions/{txid}` endpoint.
type TransactionRecord struct {
	BlockHash     *string    `json:"blockHash"`
	Confirmations int64      `json:"confirmations"`
	Height        *int64     `json:"height"`
	TransactionID string     `json:"transactionId"`
	Outputs       []TxOutput `json:"outputs"`
	Inputs        []TxInput  `json:"inputs"`
	Timestamp     int64      `json:"timestamp"`
	BalanceChange int64      `json:"balanceChange"`
	Replaceable   bool       `json:"replaceable"`
	Replacing     *string    `json:"replacing"`
	ReplacedBy    *string    `json:"replacedBy"`
}

// TxOutput is an output of a TransactionRecord that pays to the tracked key.
type TxOutput struct {
	KeyPath      string `json:"keyPath"`
	ScriptPubKey string `json:"scriptPubKey"`
	Address      string `json:"address,omitempty"`
	Index        int    `json:"index"`
	Value        int64  `json:"value"`
}

// TxInput is an input of a TransactionRecord that spends from the tracked key.
type TxInput struct {
	InputIndex    int    `json:"inputIndex"`
	TransactionID string `json:"transactionId"`
	ScriptPubKey  string `json:"scriptPubKey"`
	Index         int    `json:"index"`
	Value         int64  `json:"value"`
	Address       string `json:"address"`
}

// TransactionType classifies a transaction by the sign of its balance change.
type TransactionType string

const (
	Received TransactionType = "Received"
	Sent     TransactionType = "Sent"
	Unknown  TransactionType = "Unknown"
)

// TransactionStatus tells whether a transaction has been mined.
type TransactionStatus string

const (
	Confirmed   TransactionStatus = "Confirmed"
	Unconfirmed TransactionStatus = "Unconfirmed"
)

// TransactionAnalysis is the notification-ready view of a TransactionRecord.
type TransactionAnalysis struct {
	XPub      string            `json:"xpub"`
	Type      TransactionType   `json:"type"`
	Amount    float64           `json:"amount"`
	Status    TransactionStatus `json:"status"`
	TxID      string            `json:"txid"`
	Timestamp int64             `json:"timestamp"`
}
