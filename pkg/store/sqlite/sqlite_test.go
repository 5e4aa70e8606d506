package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txnwatch/pkg/store/storetest"
)

func TestStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "txnwatch.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	storetest.Run(t, s)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "txnwatch.db")
	ctx := context.Background()

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "transactions", `[{"id":"1"}]`))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "transactions")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, got)
}
