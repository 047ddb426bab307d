package rescache_test

import (
	"testing"
	"time"

	"github.com/caiofalcao/rescache"
	"github.com/stretchr/testify/assert"
)

func TestPickTTL_ZeroBaseSkipsWrite(t *testing.T) {
	assert.Equal(t, time.Duration(0), rescache.PickTTL(true, 60*time.Second, 0, 0.1))
}

func TestPickTTL_WithinJitterBound(t *testing.T) {
	base := 60 * time.Second
	jitterFraction := 0.1
	maxJitter := time.Duration(float64(base) * jitterFraction)

	for i := 0; i < 200; i++ {
		got := rescache.PickTTL(false, base, 30*time.Second, jitterFraction)
		assert.GreaterOrEqual(t, got, base-maxJitter)
		assert.LessOrEqual(t, got, base+maxJitter)
	}
}

func TestPickTTL_NeverBelowOneSecond(t *testing.T) {
	defer rescache.SetRandIntnFunc(nil)
	rescache.SetRandIntnFunc(func(n int) int { return 0 }) // forces the minimum offset (-jitter)

	got := rescache.PickTTL(false, 1*time.Second, 0, 0.9)
	assert.GreaterOrEqual(t, got, time.Second)
}
