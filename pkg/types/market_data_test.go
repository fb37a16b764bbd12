package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarExtremes(t *testing.T) {
	b := NewBar(OHLCV{Open: 100, High: 110, Low: 90, Close: 105, Timestamp: time.Now()})

	assert.Equal(t, 90.0, b.AdverseExtreme(SideLong))
	assert.Equal(t, 110.0, b.FavorableExtreme(SideLong))
	assert.Equal(t, 110.0, b.AdverseExtreme(SideShort))
	assert.Equal(t, 90.0, b.FavorableExtreme(SideShort))
}

func TestBarIndicators(t *testing.T) {
	b := NewBar(OHLCV{Close: 1})
	_, ok := b.ATRValue()
	assert.False(t, ok, "missing ATR must not be usable")

	zero := 0.0
	b.ATR = &zero
	_, ok = b.ATRValue()
	assert.False(t, ok, "zero ATR must not be usable")

	atr := 2.5
	b.ATR = &atr
	v, ok := b.ATRValue()
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)
}

func TestTrendOpposes(t *testing.T) {
	assert.True(t, TrendDown.Opposes(SideLong))
	assert.True(t, TrendUp.Opposes(SideShort))
	assert.False(t, TrendUp.Opposes(SideLong))
	assert.False(t, TrendUnknown.Opposes(SideLong))
	assert.False(t, TrendUnknown.Opposes(SideShort))
}

func TestSide(t *testing.T) {
	assert.Equal(t, SideShort, SideLong.Opposite())
	assert.Equal(t, -1.0, SideShort.Sign())

	s, err := ParseSide(" Short ")
	require.NoError(t, err)
	assert.Equal(t, SideShort, s)

	_, err = ParseSide("sideways")
	assert.Error(t, err)
}
