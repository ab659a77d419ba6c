package common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAny(t *testing.T) {
	assert.True(t, HasAny("light rain shower", "snow", "rain"))
	assert.False(t, HasAny("sunny", "rain", "cloud"))
	assert.False(t, HasAny("anything"))
}

func TestDistance(t *testing.T) {
	assert.Zero(t, Distance(10, 20, 10, 20))

	// Paris to London is about 344 km.
	d := Distance(48.8566, 2.3522, 51.5074, -0.1278)
	assert.InDelta(t, 343_500, d, 2_000)

	assert.Equal(t, Distance(1, 2, 3, 4), Distance(3, 4, 1, 2))
}

func TestInflightCancelAll(t *testing.T) {
	var f Inflight

	ctx1, done1 := f.Begin(context.Background())
	ctx2, _ := f.Begin(context.Background())
	assert.Equal(t, 2, f.Len())

	done1()
	assert.NoError(t, ctx2.Err())
	assert.ErrorIs(t, ctx1.Err(), context.Canceled)
	assert.Equal(t, 1, f.Len())

	f.CancelAll()
	assert.ErrorIs(t, ctx2.Err(), context.Canceled)
	assert.Zero(t, f.Len())
}
