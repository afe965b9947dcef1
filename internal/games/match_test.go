package games

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestMatchGameBoardShape(t *testing.T) {
	g, err := NewMatchGame("The cat sat on the mat", testRand())
	require.NoError(t, err)

	// Eligible words: The, cat, sat, the, mat (len > 2), capped at 4 pairs
	assert.Equal(t, 4, g.Pairs())
	assert.Len(t, g.Tiles, 8)

	// Every pair id appears exactly twice: once forward, once reversed
	byPair := make(map[int][]string)
	for _, tile := range g.Tiles {
		byPair[tile.PairID] = append(byPair[tile.PairID], tile.Text)
	}
	assert.Len(t, byPair, 4)
	for id, texts := range byPair {
		require.Len(t, texts, 2, "pair %d", id)
		assert.Equal(t, texts[0], reverse(texts[1]))
	}
}

func TestMatchGameRequiresTwoWords(t *testing.T) {
	_, err := NewMatchGame("el cat", testRand())
	assert.ErrorIs(t, err, ErrNotEnoughWords)

	_, err = NewMatchGame("", testRand())
	assert.ErrorIs(t, err, ErrNotEnoughWords)

	_, err = NewMatchGame("a b c d", testRand())
	assert.ErrorIs(t, err, ErrNotEnoughWords)
}

func findPair(g *MatchGame, pairID int) (int, int) {
	first, second := -1, -1
	for i, tile := range g.Tiles {
		if tile.PairID == pairID {
			if first < 0 {
				first = i
			} else {
				second = i
			}
		}
	}
	return first, second
}

func TestMatchGameCorrectPairStaysRevealed(t *testing.T) {
	g, err := NewMatchGame("gato perro casa", testRand())
	require.NoError(t, err)

	i, j := findPair(g, 0)

	out := g.Reveal(i)
	assert.False(t, out.Matched)
	assert.Equal(t, -1, out.Partner)
	assert.True(t, g.Tiles[i].Revealed)

	out = g.Reveal(j)
	assert.True(t, out.Matched)
	assert.Equal(t, i, out.Partner)
	assert.Equal(t, MatchBonus, out.Bonus)
	assert.True(t, g.Tiles[i].Matched)
	assert.True(t, g.Tiles[j].Matched)
	assert.False(t, out.Finished)
}

func TestMatchGameMismatchHidesBoth(t *testing.T) {
	g, err := NewMatchGame("gato perro casa", testRand())
	require.NoError(t, err)

	i, _ := findPair(g, 0)
	j, _ := findPair(g, 1)

	g.Reveal(i)
	out := g.Reveal(j)

	assert.True(t, out.Hidden)
	assert.Equal(t, i, out.Partner)
	assert.Zero(t, out.Bonus)
	assert.False(t, g.Tiles[i].Revealed)
	assert.False(t, g.Tiles[j].Revealed)
}

func TestMatchGameCompletes(t *testing.T) {
	g, err := NewMatchGame("uno dos tres cuatro", testRand())
	require.NoError(t, err)

	var lastOut RevealOutcome
	totalBonus := 0
	for pair := 0; pair < g.Pairs(); pair++ {
		i, j := findPair(g, pair)
		g.Reveal(i)
		lastOut = g.Reveal(j)
		totalBonus += lastOut.Bonus
	}

	assert.True(t, g.Finished())
	assert.True(t, lastOut.Finished)
	assert.Equal(t, g.Pairs()*MatchBonus, totalBonus)
}

func TestMatchGameRevealMatchedTileIsNoop(t *testing.T) {
	g, err := NewMatchGame("gato perro casa", testRand())
	require.NoError(t, err)

	i, j := findPair(g, 0)
	g.Reveal(i)
	g.Reveal(j)

	out := g.Reveal(i)
	assert.False(t, out.Matched)
	assert.Equal(t, -1, out.Partner)
	assert.Zero(t, out.Bonus)
	assert.True(t, g.Tiles[i].Matched)
}
