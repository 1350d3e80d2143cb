package types

// Utxo is a single unspent output of the tracked key.
type Utxo struct {
	Feature         string `json:"feature,omitempty"`
	Outpoint        string `json:"outpoint,omitempty"`
	Index           int    `json:"index"`
	TransactionHash string `json:"transactionHash"`
	Value           int64  `json:"value"`
	ScriptPubKey    string `json:"scriptPubKey,omitempty"`
	Address         string `json:"address"`
	KeyPath         string `json:"keyPath,omitempty"`
	Timestamp       int64  `json:"timestamp,omitempty"`
	Confirmations   int64  `json:"confirmations"`
}

// UtxoSet is one half (confirmed or unconfirmed) of a UtxoSnapshot.
type UtxoSet struct {
	Utxos          []Utxo   `json:"utxOs"`
	SpentOutpoints []string `json:"spentOutpoints"`
	HasChanges     bool     `json:"hasChanges"`
}

// UtxoSnapshot is NBXplorer's current UTXO set for a derivation strategy.
type UtxoSnapshot struct {
	TrackedSource      string   `json:"trackedSource"`
	DerivationStrategy string   `json:"derivationStrategy"`
	CurrentHeight      int64    `json:"currentHeight"`
	Unconfirmed        UtxoSet  `json:"unconfirmed"`
	Confirmed          UtxoSet  `json:"confirmed"`
	SpentUnconfirmed   []string `json:"spentUnconfirmed"`
}

// AddressBalance holds the satoshi balances of one address.
type AddressBalance struct {
	Address     string
	Unconfirmed int64
	Confirmed   int64
}

// AddressBalances sums the snapshot's outputs per address. A UTXO counts as
// unconfirmed iff it has zero confirmations, whichever list it came from.
// Addresses are returned in the order they first appear, unconfirmed list
// first.
func (s UtxoSnapshot) AddressBalances() []AddressBalance {
	var res []AddressBalance
	index := map[string]int{}

	all := make([]Utxo, 0, len(s.Unconfirmed.Utxos)+len(s.Confirmed.Utxos))
	all = append(all, s.Unconfirmed.Utxos...)
	all = append(all, s.Confirmed.Utxos...)

	for _, utxo := range all {
		i, ok := index[utxo.Address]
		if !ok {
			i = len(res)
			index[utxo.Address] = i
			res = append(res, AddressBalance{Address: utxo.Address})
		}
		if utxo.Confirmations == 0 {
			res[i].Unconfirmed += utxo.Value
		} else {
			res[i].Confirmed += utxo.Value
		}
	}
	return res
}

// Totals returns the unconfirmed and confirmed satoshi totals.
func (s UtxoSnapshot) Totals() (unconfirmed, confirmed int64) {
	for _, b := range s.AddressBalances() {
		unconfirmed += b.Unconfirmed
		confirmed += b.Confirmed
	}
	return
}
