// Package storetest holds a behavioural test suite shared by every api.Store implementation.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txnwatch/pkg/api"
)

// Run exercises the get/set contract against s. The store must start empty.
func Run(t *testing.T, s api.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key reads empty", func(t *testing.T) {
		got, err := s.Get(ctx, "transactions")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "merchant_categories", `{"swiggy":"Food"}`))

		got, err := s.Get(ctx, "merchant_categories")
		require.NoError(t, err)
		assert.JSONEq(t, `{"swiggy":"Food"}`, got)
	})

	t.Run("set overwrites whole value", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "user_profile", `{"monthly_income":50000,"name":"A"}`))
		require.NoError(t, s.Set(ctx, "user_profile", `{"monthly_income":60000}`))

		got, err := s.Get(ctx, "user_profile")
		require.NoError(t, err)
		assert.Equal(t, `{"monthly_income":60000}`, got)
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "category_caps", `{}`))

		got, err := s.Get(ctx, "merchant_categories")
		require.NoError(t, err)
		assert.JSONEq(t, `{"swiggy":"Food"}`, got)
	})
}
