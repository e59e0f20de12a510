package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGame(words ...string) *Game {
	return newGame(&Config{}, WordBank(words))
}

// newSink returns an outbound channel roomy enough that a test sink never
// backs up by accident; pruning is exercised by wedging a sink on purpose.
func newSink() chan ServerMessage {
	return make(chan ServerMessage, 256)
}

func drain(ch chan ServerMessage) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func TestJoinAssignsStrictlyIncreasingIDs(t *testing.T) {
	g := testGame("forest")

	id1, _ := g.join("", newSink())
	id2, _ := g.join("", newSink())
	id3, _ := g.join("", newSink())

	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)
	assert.Equal(t, uint64(3), id3)

	// Departures never free up ids for reuse.
	g.leave(id2)
	g.leave(id3)

	id4, _ := g.join("", newSink())
	assert.Equal(t, uint64(4), id4)
}

func TestJoinDefaultsPlayerName(t *testing.T) {
	g := testGame("forest")

	_, state := g.join("", newSink())

	require.Len(t, state.Players, 1)
	assert.Equal(t, "player-1", state.Players[0].Name)
	assert.Zero(t, state.Players[0].Score)
	assert.Empty(t, state.Players[0].Typed)
}

func TestJoinSendsWelcomeThenState(t *testing.T) {
	g := testGame("forest")

	sink := newSink()
	id, _ := g.join("", sink)

	first := <-sink
	require.Equal(t, "Welcome", first.Type)
	assert.Equal(t, WelcomeData{PlayerID: id}, first.Data)

	second := <-sink
	assert.Equal(t, "State", second.Type)
}

func TestSubmitCorrectWordAdvancesRound(t *testing.T) {
	g := testGame("forest", "bridge")

	sink := newSink()
	id, state := g.join("ada", sink)
	word := state.CurrentWord
	g.updateTyped(id, word)

	after := g.submitWord(id, word)

	assert.Equal(t, uint64(2), after.Round)
	assert.NotEqual(t, word, after.CurrentWord)
	assert.NotEmpty(t, after.CurrentWord)
	require.NotNil(t, after.WinnerLastRound)
	assert.Equal(t, "ada", *after.WinnerLastRound)
	require.Len(t, after.Players, 1)
	assert.Equal(t, uint64(1), after.Players[0].Score)
	assert.Empty(t, after.Players[0].Typed, "typed-progress resets on round change")
}

func TestSubmitMatchingIsTrimmedAndCaseInsensitive(t *testing.T) {
	g := testGame("forest", "bridge")

	sink := newSink()
	id, state := g.join("ada", sink)

	for state.CurrentWord != "forest" {
		state = g.submitWord(id, state.CurrentWord)
	}
	drain(sink)
	score := state.Players[0].Score

	// Near misses leave the game untouched.
	for _, guess := range []string{"forests", "fores", "", "forest extra"} {
		after := g.submitWord(id, guess)
		assert.Equal(t, state.Round, after.Round, "guess %q", guess)
		assert.Equal(t, "forest", after.CurrentWord, "guess %q", guess)
		assert.Equal(t, score, after.Players[0].Score, "guess %q", guess)
		assert.Equal(t, state.WinnerLastRound, after.WinnerLastRound, "guess %q", guess)
	}

	after := g.submitWord(id, "  FOREST ")
	assert.Equal(t, state.Round+1, after.Round)
	assert.Equal(t, score+1, after.Players[0].Score)
}

func TestSubmitByUnknownPlayerIsNoOp(t *testing.T) {
	g := testGame("forest", "bridge")

	_, state := g.join("ada", newSink())

	after := g.submitWord(99, state.CurrentWord)
	assert.Equal(t, state.Round, after.Round)
	assert.Equal(t, state.CurrentWord, after.CurrentWord)
}

func TestSubmitClearsEveryPlayersTypedProgress(t *testing.T) {
	g := testGame("forest", "bridge")

	id1, _ := g.join("ada", newSink())
	id2, _ := g.join("bob", newSink())

	state := g.updateTyped(id1, "for")
	state = g.updateTyped(id2, "fo")
	for _, p := range state.Players {
		assert.NotEmpty(t, p.Typed)
	}

	after := g.submitWord(id1, state.CurrentWord)
	for _, p := range after.Players {
		assert.Empty(t, p.Typed)
	}
}

func TestScoreSaturates(t *testing.T) {
	g := testGame("forest", "bridge")

	id, state := g.join("ada", newSink())
	g.players[id].Score = math.MaxUint64

	after := g.submitWord(id, state.CurrentWord)
	assert.Equal(t, uint64(math.MaxUint64), after.Players[0].Score)
}

func TestUpdateTypedSanitizes(t *testing.T) {
	g := testGame("bridge")

	id, _ := g.join("ada", newSink())

	state := g.updateTyped(id, "Br1Dge-Extra")
	require.Len(t, state.Players, 1)
	assert.Equal(t, "brdgee", state.Players[0].Typed)
}

func TestUpdateTypedByUnknownPlayerIsNoOp(t *testing.T) {
	g := testGame("bridge")

	_, before := g.join("ada", newSink())
	after := g.updateTyped(42, "bri")

	assert.Equal(t, before.Players, after.Players)
}

func TestSanitizeTyped(t *testing.T) {
	tests := []struct {
		raw  string
		max  int
		want string
	}{
		{"Br1Dge-Extra", 6, "brdgee"},
		{"bridge", 6, "bridge"},
		{"BRIDGE", 6, "bridge"},
		{"", 6, ""},
		{"123-!?", 6, ""},
		{"abcdef", 3, "abc"},
		{"héllo", 5, "hllo"},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, sanitizeTyped(test.raw, test.max), "raw %q max %d", test.raw, test.max)
	}
}

func TestRenameAllowsDuplicateNames(t *testing.T) {
	g := testGame("forest")

	id1, _ := g.join("", newSink())
	id2, _ := g.join("", newSink())

	g.rename(id1, "ada")
	state := g.rename(id2, "ada")

	require.Len(t, state.Players, 2)
	assert.Equal(t, "ada", state.Players[0].Name)
	assert.Equal(t, "ada", state.Players[1].Name)
	assert.NotEqual(t, state.Players[0].ID, state.Players[1].ID)

	// Identity stays with the id: only id1 scores.
	require.NotEmpty(t, state.CurrentWord)
	after := g.submitWord(id1, state.CurrentWord)
	for _, p := range after.Players {
		if p.ID == id1 {
			assert.Equal(t, uint64(1), p.Score)
		} else {
			assert.Zero(t, p.Score)
		}
	}
}

func TestSnapshotOrdering(t *testing.T) {
	g := testGame("forest", "bridge")

	id1, _ := g.join("ada", newSink())
	id2, state := g.join("bob", newSink())
	id3, _ := g.join("cyd", newSink())

	// bob wins twice, cyd once.
	state = g.submitWord(id2, state.CurrentWord)
	state = g.submitWord(id2, state.CurrentWord)
	state = g.submitWord(id3, state.CurrentWord)

	require.Len(t, state.Players, 3)
	assert.Equal(t, []uint64{id2, id3, id1}, []uint64{state.Players[0].ID, state.Players[1].ID, state.Players[2].ID})
}

func TestLeaveRemovesPlayerAndBroadcasts(t *testing.T) {
	g := testGame("forest")

	id1, _ := g.join("ada", newSink())
	sink2 := newSink()
	id2, _ := g.join("bob", sink2)
	drain(sink2)

	state := g.leave(id1)

	require.Len(t, state.Players, 1)
	assert.Equal(t, id2, state.Players[0].ID)

	select {
	case msg := <-sink2:
		assert.Equal(t, "State", msg.Type)
	default:
		t.Fatal("remaining player received no departure broadcast")
	}

	// Leaving twice is harmless.
	state = g.leave(id1)
	assert.Len(t, state.Players, 1)
}

func TestBroadcastPrunesFailedConnection(t *testing.T) {
	g := testGame("forest")

	sink1 := newSink()
	id1, _ := g.join("ada", sink1)
	sink2 := newSink()
	g.join("bob", sink2)
	sink3 := newSink()
	g.join("cyd", sink3)

	drain(sink1)
	drain(sink2)
	drain(sink3)

	// Wedge bob's outbound path.
	for i := 0; i < cap(sink2); i++ {
		sink2 <- ServerMessage{}
	}

	state := g.rename(id1, "grace")

	require.Len(t, state.Players, 2, "failed sink must be pruned from the registry")
	for _, p := range state.Players {
		assert.NotEqual(t, "bob", p.Name)
	}

	// The other players still got the snapshot.
	for _, sink := range []chan ServerMessage{sink1, sink3} {
		select {
		case msg := <-sink:
			assert.Equal(t, "State", msg.Type)
		default:
			t.Fatal("healthy sink missed the broadcast")
		}
	}

	// A pruned sink is closed once its backlog drains.
	drain(sink2)
	_, open := <-sink2
	assert.False(t, open)

	// Subsequent broadcasts reach the remaining players.
	drain(sink1)
	drain(sink3)
	g.rename(id1, "hopper")
	for _, sink := range []chan ServerMessage{sink1, sink3} {
		select {
		case <-sink:
		default:
			t.Fatal("remaining sink missed a later broadcast")
		}
	}
}

func TestConcurrentSubmissionsAwardOneRoundEach(t *testing.T) {
	g := testGame("forest", "bridge")

	const players = 8
	ids := make([]uint64, 0, players)
	sinks := make([]chan ServerMessage, 0, players)
	var state StateData
	for i := 0; i < players; i++ {
		sink := newSink()
		id, s := g.join("", sink)
		ids = append(ids, id)
		sinks = append(sinks, sink)
		state = s
	}
	for _, sink := range sinks {
		drain(sink)
	}

	word := state.CurrentWord

	done := make(chan struct{})
	for _, id := range ids {
		id := id
		go func() {
			defer func() { done <- struct{}{} }()
			g.submitWord(id, word)
		}()
	}
	for i := 0; i < players; i++ {
		<-done
	}

	// Exactly one submission can match: the winner flips the word atomically,
	// so every other attempt compares against the new word and misses.
	after := g.rename(ids[0], "observer")
	assert.Equal(t, uint64(2), after.Round)

	var total uint64
	for _, p := range after.Players {
		total += p.Score
	}
	assert.Equal(t, uint64(1), total)
}
