package chat

import (
	"testing"

	"PPLive/module/chat/model"

	"github.com/stretchr/testify/require"
)

func TestTypingRelaysToOthersOnly(t *testing.T) {
	r := NewRooms()
	typing := NewTyping(r)
	alice, bob := NewConn("alice", 1, 8), NewConn("bob", 2, 8)
	r.Join(alice, 5)
	r.Join(bob, 5)

	require.Equal(t, 1, typing.Relay(alice, 5, true))
	require.Equal(t, 1, typing.Relay(alice, 5, false))

	require.Empty(t, queued(t, alice))
	got := queued(t, bob)
	require.Equal(t, []string{model.EvUserTyping, model.EvUserStopTyping}, events(got))
	for _, f := range got {
		require.Equal(t, model.TypingSignal{UserID: 1, ChatID: 5}, decodeData[model.TypingSignal](t, f))
	}
}

func TestTypingInEmptyRoomIsNoop(t *testing.T) {
	typing := NewTyping(NewRooms())
	require.Zero(t, typing.Relay(NewConn("a", 1, 1), 9, true))
}
