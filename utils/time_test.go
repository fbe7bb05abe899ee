package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeProviders(t *testing.T) {
	fixed := time.Date(2025, 6, 13, 16, 0, 0, 0, time.UTC)
	var p TimeProvider = FixedTimeProvider{Time: fixed}
	assert.Equal(t, fixed, p.Now())

	before := time.Now()
	now := RealTimeProvider{}.Now()
	assert.False(t, now.Before(before))
}
