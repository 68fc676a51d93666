package guard

import (
	"testing"

	"main/internal/schema"
	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVenueContractConstants(t *testing.T) {
	assert.InDelta(t, 100.0, Leverage, 0)
	assert.InDelta(t, 0.1, MinContractSize, 0)
}

func TestNewRejectsBadMargin(t *testing.T) {
	for _, margin := range []float64{0, -0.1, 1.5} {
		_, err := New(margin)
		assert.Error(t, err, "margin %v", margin)
	}
}

func TestValidateCapsOversizedRequest(t *testing.T) {
	g, err := New(0.2)
	require.NoError(t, err)

	// capital 1000, margin 20%, leverage 100, mid 100 -> 200 contracts max.
	decision, err := g.Validate(1000, schema.SideBuy, 1000, nil, nil, 100)
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.True(t, decision.WasAdjusted)
	assert.Equal(t, 200.0, decision.AdjustedSize)
	assert.Equal(t, 200.0, decision.MaxAllowed)
}

func TestValidatePassesWithinCap(t *testing.T) {
	g, err := New(0.2)
	require.NoError(t, err)

	decision, err := g.Validate(50, schema.SideBuy, 1000, nil, nil, 100)
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.False(t, decision.WasAdjusted)
	assert.Equal(t, 50.0, decision.AdjustedSize)
}

func TestValidateCountsExposure(t *testing.T) {
	g, err := New(0.2)
	require.NoError(t, err)

	trade := &schema.Trade{Active: true, IsLong: true, NetSize: 120}
	pending := []schema.Order{
		{Side: schema.SideBuy, IntendedVolume: 50, CumulativeFilled: 20, State: schema.OrderStateLive},
		{Side: schema.SideSell, IntendedVolume: 40, State: schema.OrderStateLive},
		{Side: schema.SideBuy, IntendedVolume: 10, CumulativeFilled: 10, State: schema.OrderStateFilled},
	}

	// Buy exposure = 120 net + 30 unfilled = 150, leaving 50 of headroom.
	decision, err := g.Validate(80, schema.SideBuy, 1000, trade, pending, 100)
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.True(t, decision.WasAdjusted)
	assert.Equal(t, 150.0, decision.SideExposure)
	assert.Equal(t, 50.0, decision.AdjustedSize)

	// The sell side only carries the unfilled sell order.
	decision, err = g.Validate(80, schema.SideSell, 1000, trade, pending, 100)
	require.NoError(t, err)
	assert.False(t, decision.WasAdjusted)
	assert.Equal(t, 40.0, decision.SideExposure)
}

func TestValidateRejectsBelowMinimumHeadroom(t *testing.T) {
	g, err := New(0.2)
	require.NoError(t, err)

	trade := &schema.Trade{Active: true, IsLong: true, NetSize: 199.95}
	decision, err := g.Validate(10, schema.SideBuy, 1000, trade, nil, 100)
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.NotEmpty(t, decision.Reason)
}

func TestValidateRejectsUnknownSide(t *testing.T) {
	g, err := New(0.2)
	require.NoError(t, err)

	_, err = g.Validate(10, schema.SideUnknown, 1000, nil, nil, 100)
	assert.ErrorIs(t, err, exception.ErrInvalidSide)

	_, err = ValidateSide("hold")
	assert.ErrorIs(t, err, exception.ErrInvalidSide)

	side, err := ValidateSide("sell")
	require.NoError(t, err)
	assert.Equal(t, schema.SideSell, side)
}
