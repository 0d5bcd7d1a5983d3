package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeField(t *testing.T) {
	for _, in := range []string{"order_id", "Order ID", "order-id", "ORDERID", " order _ id "} {
		assert.Equal(t, "orderid", NormalizeField(in), in)
	}
}

func TestMatchFields(t *testing.T) {
	t.Run("Matched Missing Extra", func(t *testing.T) {
		got := MatchFields(
			[]string{"name", "order_id", "date"},
			[]string{"Name", "Order ID", "phone"},
		)
		assert.Equal(t, []string{"name", "order_id"}, got.Matched)
		assert.Equal(t, []string{"date"}, got.Missing)
		assert.Equal(t, []string{"phone"}, got.Extra)
		assert.False(t, got.Compatible())
	})

	t.Run("No Variables Yields Empty Report", func(t *testing.T) {
		got := MatchFields(nil, []string{"phone"})
		assert.Empty(t, got.Matched)
		assert.Empty(t, got.Missing)
		assert.Empty(t, got.Extra)
		assert.True(t, got.Compatible())
	})
}
