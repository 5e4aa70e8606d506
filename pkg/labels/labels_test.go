package labels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txnwatch/pkg/store"
)

func TestMemory_LookupAssign(t *testing.T) {
	ctx := context.Background()
	m := New(store.NewMemory(), nil)

	_, ok, err := m.Lookup(ctx, "bigbasket")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Assign(ctx, "bigbasket", "Groceries"))
	category, ok, err := m.Lookup(ctx, "bigbasket")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Groceries", category)

	// last write wins
	require.NoError(t, m.Assign(ctx, "bigbasket", "Food"))
	category, _, err = m.Lookup(ctx, "bigbasket")
	require.NoError(t, err)
	assert.Equal(t, "Food", category)
}

func TestMemory_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, New(s, nil).Assign(ctx, "apollo pharmacy", "Health"))

	category, ok, err := New(s, nil).Lookup(ctx, "apollo pharmacy")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Health", category)

	raw, err := s.Get(ctx, store.KeyMerchantCategories)
	require.NoError(t, err)
	assert.JSONEq(t, `{"apollo pharmacy":"Health"}`, raw)
}

func TestMemory_MalformedReadsEmpty(t *testing.T) {
	for _, stored := range []string{`["not","a","map"]`, `null`, `{"uber":`} {
		t.Run(stored, func(t *testing.T) {
			ctx := context.Background()
			s := store.NewMemory()
			require.NoError(t, s.Set(ctx, store.KeyMerchantCategories, stored))
			m := New(s, nil)

			all, err := m.All(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)

			require.NoError(t, m.Assign(ctx, "uber", "Transport"))
			all, err = m.All(ctx)
			require.NoError(t, err)
			assert.Equal(t, Labels{"uber": "Transport"}, all)
		})
	}
}

func TestMemory_SeedOverNull(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Set(ctx, store.KeyMerchantCategories, `null`))
	m := New(s, nil)

	added, err := m.Seed(ctx, Labels{"uber": "Transport"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	category, ok, err := m.Lookup(ctx, "uber")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Transport", category)
}

func TestMemory_SeedKeepsUserChoices(t *testing.T) {
	ctx := context.Background()
	m := New(store.NewMemory(), nil)
	require.NoError(t, m.Assign(ctx, "swiggy", "Others"))

	seed, err := DefaultSeed()
	require.NoError(t, err)
	require.Equal(t, "Food", seed["swiggy"])

	added, err := m.Seed(ctx, seed)
	require.NoError(t, err)
	assert.Equal(t, len(seed)-1, added)

	category, _, err := m.Lookup(ctx, "swiggy")
	require.NoError(t, err)
	assert.Equal(t, "Others", category)

	added, err = m.Seed(ctx, seed)
	require.NoError(t, err)
	assert.Zero(t, added)
}
