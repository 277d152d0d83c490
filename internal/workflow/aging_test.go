package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAgingDays(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	revised := now.AddDate(0, 0, -5)
	answered := now.AddDate(0, 0, -2)

	// Latest answer wins over the revise timestamp.
	assert.Equal(t, 2, AgingDays(now, &revised, &answered))
	assert.Equal(t, 5, AgingDays(now, &revised, nil))
	assert.Equal(t, 0, AgingDays(now, nil, nil))

	future := now.Add(time.Hour)
	assert.Equal(t, 0, AgingDays(now, &future, nil))
}

func TestAgingBucket(t *testing.T) {
	cases := map[int]string{
		0:  "0-1",
		1:  "0-1",
		2:  "2-3",
		3:  "2-3",
		4:  "4-7",
		7:  "4-7",
		8:  ">7",
		30: ">7",
	}
	for days, want := range cases {
		assert.Equal(t, want, AgingBucket(days), "days=%d", days)
	}
}
