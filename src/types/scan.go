package types

// ScanState is the state of an NBXplorer UTXO scan.
type ScanState string

const (
	ScanQueued   ScanState = "Queued"
	ScanPending  ScanState = "Pending"
	ScanComplete ScanState = "Complete"
	ScanError    ScanState = "Error"
)

// ScanStatus is returned by `GET /derivations/{strategy}/utxos/scan`.
type ScanStatus struct {
	Error    *string       `json:"error"`
	QueuedAt int64         `json:"queuedAt,omitempty"`
	Status   ScanState     `json:"status"`
	Progress *ScanProgress `json:"progress"`
}

type ScanProgress struct {
	StartedAt        int64  `json:"startedAt,omitempty"`
	CompletedAt      *int64 `json:"completedAt,omitempty"`
	Found            int64  `json:"found"`
	BatchNumber      int64  `json:"batchNumber"`
	RemainingBatches int64  `json:"remainingBatches"`
	OverallProgress  int    `json:"overallProgress"`
	// RemainingSeconds is nil while NBXplorer cannot estimate it.
	RemainingSeconds *int64 `json:"remainingSeconds"`
}
