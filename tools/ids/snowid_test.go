package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextIsUniqueAndIncreasing(t *testing.T) {
	n := NewNode(7)
	var last int64
	seen := make(map[int64]bool)
	for i := 0; i < 20000; i++ {
		id := n.Next()
		require.Greater(t, id, last)
		require.False(t, seen[id])
		seen[id] = true
		last = id
	}
	require.Equal(t, int64(7), (last>>seqBits)&maxNode)
}

func TestClockGoingBackwardsKeepsOrder(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := NewNode(1)
	n.now = func() time.Time { return now }

	a := n.Next()
	now = now.Add(-time.Second)
	b := n.Next()
	require.Greater(t, b, a)
}

func TestNewNodeClampsRange(t *testing.T) {
	require.Equal(t, int64(1), NewNode(-1).node)
	require.Equal(t, int64(1), NewNode(maxNode+1).node)
	require.Equal(t, int64(maxNode), NewNode(maxNode).node)
}
