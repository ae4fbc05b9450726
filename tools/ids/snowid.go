// Package ids hands out snowflake ids for connection handles.
//
// Layout: 41 bits of milliseconds since 2024-01-01 UTC, 10 bits node, 12 bits sequence.
package ids

import (
	"strconv"
	"sync"
	"time"
)

const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	seqMask  = 1<<seqBits - 1
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type Node struct {
	mu     sync.Mutex
	node   int64
	seq    int64
	lastMS int64
	now    func() time.Time
}

// NewNode clamps out-of-range node numbers to 1.
func NewNode(node int64) *Node {
	if node < 0 || node > maxNode {
		node = 1
	}
	return &Node{node: node, now: time.Now}
}

func (n *Node) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	ms := n.now().Sub(epoch).Milliseconds()
	if ms < n.lastMS {
		// clock went backwards, keep issuing from the last timestamp
		ms = n.lastMS
	}
	if ms == n.lastMS {
		n.seq = (n.seq + 1) & seqMask
		if n.seq == 0 {
			for ms <= n.lastMS {
				ms = n.now().Sub(epoch).Milliseconds()
			}
		}
	} else {
		n.seq = 0
	}
	n.lastMS = ms

	return ms<<(nodeBits+seqBits) | n.node<<seqBits | n.seq
}

func (n *Node) NextString() string {
	return strconv.FormatInt(n.Next(), 10)
}
