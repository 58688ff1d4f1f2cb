// Package monitor drives PENDING ledger entries to a terminal status by
// periodically polling the chain that carries each transaction.
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	stableips "github.com/graphtrek/stableips-sub001"
	"github.com/graphtrek/stableips-sub001/ledger"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultPeriod           = 30 * time.Second
	DefaultInitialDelay     = 10 * time.Second
	DefaultMaxAge           = 24 * time.Hour
	DefaultEVMConfirmations = 3
)

// Config tunes the monitor loop.
type Config struct {
	// Period between ticks.
	Period time.Duration

	// InitialDelay before the first tick.
	InitialDelay time.Duration

	// MaxAge after which a PENDING entry is forced to TIMEOUT, even if the
	// chain would still confirm it.
	MaxAge time.Duration

	// EVMConfirmations is the block depth required to confirm an EVM
	// transaction.
	EVMConfirmations uint64
}

// Monitor owns the background loop. One instance per process.
type Monitor struct {
	store    *ledger.Store
	adapters map[stableips.Network]stableips.ChainAdapter
	cfg      Config
	log      *zap.Logger

	now func() time.Time
}

// New builds a monitor over the store with one adapter per network.
func New(store *ledger.Store, adapters map[stableips.Network]stableips.ChainAdapter, cfg Config, log *zap.Logger) *Monitor {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.EVMConfirmations == 0 {
		cfg.EVMConfirmations = DefaultEVMConfirmations
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		store:    store,
		adapters: adapters,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled, ticking once after the initial delay
// and on every period thereafter. Shutdown is cooperative: the in-flight
// entry finishes before the loop exits.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("transaction monitor starting",
		zap.Duration("initial_delay", m.cfg.InitialDelay),
		zap.Duration("period", m.cfg.Period))

	select {
	case <-ctx.Done():
		return
	case <-time.After(m.cfg.InitialDelay):
	}
	m.Tick(ctx)

	ticker := time.NewTicker(m.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("transaction monitor stopped")
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick resolves every PENDING entry once. Each entry runs in its own failure
// boundary: an error leaves that entry PENDING and the tick moves on.
func (m *Monitor) Tick(ctx context.Context) {
	entries, err := m.store.ByStatus(stableips.StatusPending)
	if err != nil {
		m.log.Error("failed to load pending entries", zap.Error(err))
		return
	}
	if len(entries) == 0 {
		return
	}
	m.log.Debug("checking pending entries", zap.Int("count", len(entries)))

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if err := m.resolve(ctx, entry); err != nil {
			m.log.Warn("entry left pending",
				zap.Uint64("entry_id", entry.ID),
				zap.String("network", string(entry.Network)),
				zap.String("tx_hash", entry.TxHash),
				zap.Error(err))
		}
	}
}

// resolve advances one entry. A nil return means the entry reached a
// terminal status or legitimately stays PENDING for the next tick.
func (m *Monitor) resolve(ctx context.Context, entry *ledger.Entry) error {
	if entry.Age(m.now()) > m.cfg.MaxAge {
		return m.transition(entry, stableips.StatusTimeout)
	}
	if stableips.IsSyntheticHash(entry.TxHash) {
		return nil
	}

	adapter, ok := m.adapters[entry.Network]
	if !ok {
		return fmt.Errorf("no adapter for network %s", entry.Network)
	}

	switch entry.Network {
	case stableips.NetworkEthereum:
		return m.resolveEVM(ctx, adapter, entry)
	case stableips.NetworkXRP, stableips.NetworkSolana:
		return m.resolveValidated(ctx, adapter, entry)
	default:
		return fmt.Errorf("unknown network %s", entry.Network)
	}
}

// resolveEVM confirms a mined transaction once it is buried under the
// configured number of blocks.
func (m *Monitor) resolveEVM(ctx context.Context, adapter stableips.ChainAdapter, entry *ledger.Entry) error {
	receipt, err := adapter.Receipt(ctx, entry.TxHash)
	if err != nil {
		return err
	}
	if !receipt.Mined {
		return nil
	}
	if !receipt.OK {
		return m.transition(entry, stableips.StatusFailed)
	}

	latest, err := adapter.LatestBlock(ctx)
	if err != nil {
		return err
	}
	if latest < receipt.BlockNumber {
		// The head is behind the receipt's block; the node is lagging.
		return nil
	}
	confirmations := latest - receipt.BlockNumber + 1
	if confirmations < m.cfg.EVMConfirmations {
		m.log.Debug("waiting for confirmations",
			zap.Uint64("entry_id", entry.ID),
			zap.Uint64("confirmations", confirmations),
			zap.Uint64("required", m.cfg.EVMConfirmations))
		return nil
	}
	return m.transition(entry, stableips.StatusConfirmed)
}

// resolveValidated handles the chains whose finality is a boolean: once the
// transaction is in a validated ledger or finalized slot, its own success
// flag decides the terminal status.
func (m *Monitor) resolveValidated(ctx context.Context, adapter stableips.ChainAdapter, entry *ledger.Entry) error {
	receipt, err := adapter.Receipt(ctx, entry.TxHash)
	if err != nil {
		return err
	}
	if !receipt.Mined {
		return nil
	}
	if !receipt.OK {
		return m.transition(entry, stableips.StatusFailed)
	}
	return m.transition(entry, stableips.StatusConfirmed)
}

func (m *Monitor) transition(entry *ledger.Entry, status stableips.Status) error {
	if err := m.store.UpdateStatus(entry.ID, status); err != nil {
		return fmt.Errorf("failed to update entry %d to %s: %w", entry.ID, status, err)
	}
	m.log.Info("entry resolved",
		zap.Uint64("entry_id", entry.ID),
		zap.String("network", string(entry.Network)),
		zap.String("tx_hash", entry.TxHash),
		zap.String("status", string(status)))
	return nil
}
