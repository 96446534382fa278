package clockoracle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNowTimestampMsNeverDecreases(t *testing.T) {
	o := New()
	prev := o.Now()
	for i := 0; i < 1000; i++ {
		next := o.Now()
		assert.Greater(t, next.TimestampMs*1000, prev.TimestampMs*1000-1)
		assert.GreaterOrEqual(t, next.TimestampMs, prev.TimestampMs)
		prev = next
	}
}

func TestNowAdvancesEvenWhenClockDoesNot(t *testing.T) {
	o := New()
	future := time.Now().UTC().UnixMicro() + 60_000_000 // a minute ahead of the wall clock, in microseconds
	o.last = future

	r := o.Now()
	assert.Equal(t, future+1, o.last)
	assert.Equal(t, (future+1)/1000, r.TimestampMs)
}
