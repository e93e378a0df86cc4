package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryKindRegistry(t *testing.T) {
	for _, k := range []EntryKind{KindTransaction, KindTrade, KindValuation} {
		assert.True(t, k.Valid(), k)
		assert.NotEmpty(t, k.Table(), k)
	}
	assert.Equal(t, "trade", KindTrade.Label())
	assert.False(t, EntryKind("Transfer").Valid())
	assert.Equal(t, "transfer", EntryKind("Transfer").Label())
}

func TestEntryValidate(t *testing.T) {
	assert.NoError(t, (&Entry{EntryableType: KindTransaction, Name: "Rent"}).Validate())
	assert.Error(t, (&Entry{EntryableType: KindTransaction, Name: "  "}).Validate())
	assert.NoError(t, (&Entry{EntryableType: KindValuation}).Validate())
	assert.ErrorIs(t, (&Entry{EntryableType: "Bogus", Name: "x"}).Validate(), ErrUnknownEntryKind)
}

func TestEntryLocks(t *testing.T) {
	e := &Entry{}
	assert.False(t, e.Locked(AttrName))

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	raw, err := e.WithLock(AttrName, at)
	require.NoError(t, err)
	e.LockedAttributes = raw
	assert.True(t, e.Locked(AttrName))
	assert.False(t, e.Locked(AttrAmount))

	raw, err = e.WithLock(AttrName, at.Add(time.Hour))
	require.NoError(t, err)
	e.LockedAttributes = raw
	assert.Equal(t, "2024-01-02T03:04:05Z", e.Locks()[AttrName])
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	got := DateOf(time.Date(2024, 3, 9, 22, 30, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), got)
}

func TestPendingFromExtra(t *testing.T) {
	cases := []struct {
		name  string
		extra map[string]any
		want  bool
	}{
		{"nil", nil, false},
		{"top level", map[string]any{"pending": true}, true},
		{"plaid", map[string]any{"plaid": map[string]any{"pending": true}}, true},
		{"simplefin false", map[string]any{"simplefin": map[string]any{"pending": false}}, false},
		{"unknown provider", map[string]any{"mint": map[string]any{"pending": true}}, false},
		{"non-bool", map[string]any{"coinbase": map[string]any{"pending": "yes"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PendingFromExtra(tc.extra))
		})
	}
}

func TestDuplicateSuggestion_PreservesOtherKeys(t *testing.T) {
	txn := &Transaction{Extra: []byte(`{"plaid":{"pending":true}}`)}
	assert.Nil(t, txn.DuplicateSuggestion())

	sg := &DuplicateSuggestion{
		EntryID:      uuid.New(),
		Reason:       SuggestionReasonFuzzyAmount,
		PostedAmount: "12.5",
		DetectedAt:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	raw, err := txn.WithDuplicateSuggestion(sg)
	require.NoError(t, err)
	txn.Extra = raw

	got := txn.DuplicateSuggestion()
	require.NotNil(t, got)
	assert.Equal(t, sg.EntryID, got.EntryID)
	assert.Equal(t, "12.5", got.PostedAmount)
	assert.True(t, PendingFromExtra(txn.Extras()))

	raw, err = txn.WithDuplicateSuggestion(nil)
	require.NoError(t, err)
	txn.Extra = raw
	assert.Nil(t, txn.DuplicateSuggestion())
	assert.True(t, PendingFromExtra(txn.Extras()))
}

func TestAccountCapabilities(t *testing.T) {
	cases := []struct {
		kind   AccountKind
		status AccountStatus
		want   bool
	}{
		{AccountKindInvestment, AccountStatusActive, true},
		{AccountKindCrypto, AccountStatusActive, true},
		{AccountKindDepository, AccountStatusActive, false},
		{AccountKindInvestment, AccountStatusDisabled, false},
		{AccountKindCrypto, AccountStatusPendingDeletion, false},
	}
	for _, tc := range cases {
		a := &Account{Kind: tc.kind, Status: tc.status}
		assert.Equal(t, tc.want, a.CanDeleteHoldings(), "%s/%s", tc.kind, tc.status)
	}
}

func TestAccountSnapshot(t *testing.T) {
	a := &Account{}
	assert.Empty(t, a.Snapshot())

	raw, err := EncodeSnapshot([]SnapshotHolding{{Symbol: "VTI", Shares: "10", CostBasis: "2000"}})
	require.NoError(t, err)
	a.HoldingsSnapshot = raw
	require.Len(t, a.Snapshot(), 1)
	assert.Equal(t, "VTI", a.Snapshot()[0].Symbol)

	a.HoldingsSnapshot = []byte("not json")
	assert.Empty(t, a.Snapshot())

	empty, err := EncodeSnapshot(nil)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(empty))
}

func TestHoldingOwnership(t *testing.T) {
	owner := uuid.New()
	h := &Holding{}
	assert.True(t, h.Unowned())
	assert.False(t, h.OwnedBy(owner))
	h.AccountProviderID = &owner
	assert.False(t, h.Unowned())
	assert.True(t, h.OwnedBy(owner))
	assert.False(t, h.OwnedBy(uuid.New()))
}

func TestActivityLabelValid(t *testing.T) {
	assert.True(t, LabelSweepIn.Valid())
	assert.False(t, ActivityLabel("Gift").Valid())
	assert.Equal(t, LabelBuy, *LabelBuy.Ptr())
}
