// Package ledger records every value movement the system performs, user
// initiated or system initiated, in a single append-only stream backed by
// LevelDB. After a write, only the Status field of a PENDING entry may
// change, exactly once.
package ledger

import (
	"fmt"
	"time"

	stableips "github.com/graphtrek/stableips-sub001"
)

// Entry is one recorded value movement.
type Entry struct {
	ID        uint64              `json:"id"`
	UserID    uint64              `json:"userId"`
	Recipient string              `json:"recipient"`
	Amount    string              `json:"amount"`
	Token     stableips.Token     `json:"token"`
	Network   stableips.Network   `json:"network"`
	TxHash    string              `json:"txHash,omitempty"`
	Status    stableips.Status    `json:"status"`
	Type      stableips.EntryType `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
}

// Age returns how long ago the entry was recorded.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

func (e *Entry) validate() error {
	switch e.Type {
	case stableips.EntryTransfer, stableips.EntryFunding, stableips.EntryMinting,
		stableips.EntryFaucetFunding, stableips.EntryExternalFunding:
	default:
		return fmt.Errorf("ledger: unknown entry type %q", e.Type)
	}
	switch e.Status {
	case stableips.StatusPending, stableips.StatusConfirmed, stableips.StatusFailed,
		stableips.StatusTimeout, stableips.StatusDropped:
	default:
		return fmt.Errorf("ledger: unknown status %q", e.Status)
	}
	if !stableips.ValidPair(e.Network, e.Token) {
		return fmt.Errorf("ledger: token %s does not settle on %s", e.Token, e.Network)
	}
	scale, err := stableips.AmountScale(e.Amount)
	if err != nil {
		return fmt.Errorf("ledger: invalid amount %q: %w", e.Amount, err)
	}
	if scale > 18 {
		return fmt.Errorf("ledger: amount %s exceeds 18 decimal places", e.Amount)
	}
	units, err := stableips.ParseAmount(e.Amount, 18)
	if err != nil {
		return fmt.Errorf("ledger: invalid amount %q: %w", e.Amount, err)
	}
	if units.Sign() <= 0 {
		return fmt.Errorf("ledger: amount must be positive, got %s", e.Amount)
	}
	if e.TxHash == "" && e.Status != stableips.StatusFailed && e.Status != stableips.StatusDropped {
		return fmt.Errorf("ledger: %s entry requires a transaction hash", e.Status)
	}
	return nil
}
