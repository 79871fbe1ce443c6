package dispatcher

import (
	"time"

	fauceterrors "github.com/testnetops/faucetd/errors"
)

// Status is the caller-visible outcome of a dispense.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusPartial     Status = "partial"
	StatusSkipped     Status = "skipped"
	StatusRateLimited Status = "rate-limited"
	StatusFailed      Status = "failed"
)

// ItemStatus reports the outcome per configured token.
type ItemStatus struct {
	Symbol string `json:"symbol"`
	Amount string `json:"amount,omitempty"`
	Sent   bool   `json:"sent"`
	Reason string `json:"reason,omitempty"`
}

// Result is the full outcome of one dispense request.
type Result struct {
	Status      Status            `json:"status"`
	TxHash      string            `json:"txHash,omitempty"`
	GasUsed     uint64            `json:"gasUsed,omitempty"`
	Items       []ItemStatus      `json:"items,omitempty"`
	RetryAt     *time.Time        `json:"retryAt,omitempty"`
	ErrorKind   fauceterrors.Kind `json:"errorKind,omitempty"`
	Error       string            `json:"error,omitempty"`
	ExplorerURL string            `json:"explorerUrl,omitempty"`
}

// TokenBalanceView is one row of an InspectBalance response.
type TokenBalanceView struct {
	Current  string `json:"current"`
	Target   string `json:"target"`
	Decimals uint8  `json:"decimals"`
}
