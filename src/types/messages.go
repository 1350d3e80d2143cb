package types

import "encoding/json"

// Message types exchanged on the NBXplorer WebSocket.
const (
	MessageSubscribeTransaction = "subscribetransaction"
	MessageNewTransaction       = "newtransaction"
	MessageNewBlock             = "newblock"
)

// Message is the envelope of every NBXplorer WebSocket message.
type Message struct {
	Type    string          `json:"type"`
	EventID int64           `json:"eventId,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// SubscribeMessage asks NBXplorer to stream transactions of the given
// derivation schemes.
type SubscribeMessage struct {
	Type string               `json:"type"`
	Data SubscribeMessageData `json:"data"`
}

type SubscribeMessageData struct {
	CryptoCode        string   `json:"cryptoCode"`
	DerivationSchemes []string `json:"derivationSchemes,omitempty"`
}

// NewSubscribeMessage returns the subscribetransaction message for one
// derivation scheme.
func NewSubscribeMessage(cryptoCode, derivationScheme string) SubscribeMessage {
	return SubscribeMessage{
		Type: MessageSubscribeTransaction,
		Data: SubscribeMessageData{
			CryptoCode:        cryptoCode,
			DerivationSchemes: []string{derivationScheme},
		},
	}
}

// NewTransactionEvent is the payload of a newtransaction message. Only the
// fields needed to fetch the full record are decoded.
type NewTransactionEvent struct {
	TrackedSource      string `json:"trackedSource"`
	DerivationStrategy string `json:"derivationStrategy"`
	CryptoCode         string `json:"cryptoCode"`
	TransactionData    struct {
		Confirmations   int64  `json:"confirmations"`
		TransactionHash string `json:"transactionHash"`
		Timestamp       int64  `json:"timestamp"`
	} `json:"transactionData"`
}
