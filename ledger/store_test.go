package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	stableips "github.com/graphtrek/stableips-sub001"
	"github.com/graphtrek/stableips-sub001/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func pendingTransfer(userID uint64, hash string) *Entry {
	return &Entry{
		UserID:    userID,
		Recipient: "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
		Amount:    "10.5",
		Token:     stableips.TokenUSDC,
		Network:   stableips.NetworkEthereum,
		TxHash:    hash,
		Status:    stableips.StatusPending,
		Type:      stableips.EntryTransfer,
	}
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Append(pendingTransfer(1, "0xaaa"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), first.ID)
	require.False(t, first.Timestamp.IsZero())

	second, err := store.Append(pendingTransfer(1, "0xbbb"))
	require.NoError(t, err)
	require.Equal(t, uint64(2), second.ID)

	got, err := store.ByID(first.ID)
	require.NoError(t, err)
	require.Equal(t, first.TxHash, got.TxHash)
	require.Equal(t, stableips.StatusPending, got.Status)
}

func TestAppendValidatesNetworkTokenPair(t *testing.T) {
	store := newTestStore(t)

	e := pendingTransfer(1, "0xaaa")
	e.Network = stableips.NetworkXRP
	_, err := store.Append(e)
	require.Error(t, err)

	e = pendingTransfer(1, "0xbbb")
	e.Token = stableips.TokenSOL
	_, err = store.Append(e)
	require.Error(t, err)
}

func TestAppendRequiresHashOutsideFailure(t *testing.T) {
	store := newTestStore(t)

	e := pendingTransfer(1, "")
	_, err := store.Append(e)
	require.Error(t, err)
	require.Contains(t, err.Error(), "PENDING")

	e.Status = stableips.StatusConfirmed
	_, err = store.Append(e)
	require.Error(t, err)

	// Only a failed or dropped movement may lack a hash.
	e.Status = stableips.StatusFailed
	_, err = store.Append(e)
	require.NoError(t, err)
}

func TestAppendRejectsBadAmounts(t *testing.T) {
	store := newTestStore(t)

	for _, amount := range []string{"0", "-1", "abc", "1.2.3", "0.0000000000000000001"} {
		e := pendingTransfer(1, "0x"+amount)
		e.Amount = amount
		_, err := store.Append(e)
		require.Error(t, err, "amount %q", amount)
	}
}

func TestAppendRejectsDuplicateHash(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Append(pendingTransfer(1, "0xsame"))
	require.NoError(t, err)
	_, err = store.Append(pendingTransfer(2, "0xsame"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestUpdateStatusLifecycle(t *testing.T) {
	store := newTestStore(t)

	e, err := store.Append(pendingTransfer(1, "0xaaa"))
	require.NoError(t, err)

	require.NoError(t, store.UpdateStatus(e.ID, stableips.StatusConfirmed))

	// Re-applying the held status is a no-op.
	require.NoError(t, store.UpdateStatus(e.ID, stableips.StatusConfirmed))

	// Any other transition away from a terminal status is rejected.
	require.Error(t, store.UpdateStatus(e.ID, stableips.StatusFailed))
	require.Error(t, store.UpdateStatus(e.ID, stableips.StatusPending))

	got, err := store.ByID(e.ID)
	require.NoError(t, err)
	require.Equal(t, stableips.StatusConfirmed, got.Status)
}

func TestUpdateStatusMissingEntry(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateStatus(42, stableips.StatusConfirmed)
	var nf *stableips.NotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestUpdateStatusPreservesFields(t *testing.T) {
	store := newTestStore(t)

	e, err := store.Append(pendingTransfer(7, "0xaaa"))
	require.NoError(t, err)

	require.NoError(t, store.UpdateStatus(e.ID, stableips.StatusTimeout))

	got, err := store.ByID(e.ID)
	require.NoError(t, err)
	require.Equal(t, stableips.StatusTimeout, got.Status)
	require.Equal(t, e.UserID, got.UserID)
	require.Equal(t, e.Recipient, got.Recipient)
	require.Equal(t, e.Amount, got.Amount)
	require.Equal(t, e.Token, got.Token)
	require.Equal(t, e.Network, got.Network)
	require.Equal(t, e.TxHash, got.TxHash)
	require.Equal(t, e.Type, got.Type)
	require.True(t, got.Timestamp.Equal(e.Timestamp))
}

func TestBySenderNewestFirst(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, hash := range []string{"0xold", "0xmid", "0xnew"} {
		e := pendingTransfer(5, hash)
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		_, err := store.Append(e)
		require.NoError(t, err)
	}
	// Another user's entry must not leak in.
	_, err := store.Append(pendingTransfer(6, "0xother"))
	require.NoError(t, err)

	entries, err := store.BySender(5)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "0xnew", entries[0].TxHash)
	require.Equal(t, "0xmid", entries[1].TxHash)
	require.Equal(t, "0xold", entries[2].TxHash)
}

func TestByRecipientNewestFirst(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	addr := "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"
	for i, hash := range []string{"0xold", "0xnew"} {
		e := pendingTransfer(uint64(i+1), hash)
		e.Recipient = addr
		e.Token = stableips.TokenXRP
		e.Network = stableips.NetworkXRP
		e.Timestamp = base.Add(time.Duration(i) * time.Hour)
		_, err := store.Append(e)
		require.NoError(t, err)
	}

	entries, err := store.ByRecipient(addr)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "0xnew", entries[0].TxHash)

	none, err := store.ByRecipient("")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestByStatusTracksTransitions(t *testing.T) {
	store := newTestStore(t)

	a, err := store.Append(pendingTransfer(1, "0xaaa"))
	require.NoError(t, err)
	b, err := store.Append(pendingTransfer(1, "0xbbb"))
	require.NoError(t, err)

	pending, err := store.ByStatus(stableips.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, store.UpdateStatus(a.ID, stableips.StatusConfirmed))

	pending, err = store.ByStatus(stableips.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, b.ID, pending[0].ID)

	confirmed, err := store.ByStatus(stableips.StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	require.Equal(t, a.ID, confirmed[0].ID)
}

func TestByUserAndTypes(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mk := func(typ stableips.EntryType, hash string, offset time.Duration) {
		e := pendingTransfer(9, hash)
		e.Type = typ
		e.Status = stableips.StatusConfirmed
		e.Timestamp = base.Add(offset)
		_, err := store.Append(e)
		require.NoError(t, err)
	}
	mk(stableips.EntryFunding, "0xfund", 0)
	mk(stableips.EntryTransfer, "0xsend", time.Minute)
	mk(stableips.EntryMinting, "0xmint", 2*time.Minute)
	mk(stableips.EntryFaucetFunding, "0xfaucet", 3*time.Minute)

	funding, err := store.ByUserAndTypes(9,
		stableips.EntryFunding, stableips.EntryMinting,
		stableips.EntryFaucetFunding, stableips.EntryExternalFunding)
	require.NoError(t, err)
	require.Len(t, funding, 3)
	require.Equal(t, "0xfaucet", funding[0].TxHash)
	require.Equal(t, "0xmint", funding[1].TxHash)
	require.Equal(t, "0xfund", funding[2].TxHash)
}

func TestByHash(t *testing.T) {
	store := newTestStore(t)

	e, err := store.Append(pendingTransfer(1, "0xdeadbeef"))
	require.NoError(t, err)

	got, err := store.ByHash("0xdeadbeef")
	require.NoError(t, err)
	require.Equal(t, e.ID, got.ID)

	_, err = store.ByHash("0xmissing")
	var nf *stableips.NotFoundError
	require.True(t, errors.As(err, &nf))
}
