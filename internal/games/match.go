// Package games implements the two vocabulary mini-games. Both engines are
// pure: they are built fresh from a lesson phrase, hold no persisted state,
// and report outcomes as values for the caller to turn into XP awards.
package games

import (
	"errors"
	"math/rand"
	"strings"
	"time"
)

const (
	// MatchBonus is the XP awarded for each matched pair
	MatchBonus = 5
	// maxMatchPairs limits the board size
	maxMatchPairs = 4
	// minMatchWordLen is the minimum word length (exclusive) for a tile word
	minMatchWordLen = 2
)

// ErrNotEnoughWords signals that the phrase cannot produce a playable board
var ErrNotEnoughWords = errors.New("not enough words to build a match game")

// Tile is one face-down card on the match board
type Tile struct {
	Text     string
	PairID   int
	Revealed bool
	Matched  bool
}

// MatchGame is a pairs board built from a phrase: each selected word gets a
// tile and a character-reversed counterpart tile
type MatchGame struct {
	Tiles []Tile

	pairs   int
	matched int
	first   int // index of the currently revealed unmatched tile, -1 if none
}

// RevealOutcome describes what happened after a tile reveal
type RevealOutcome struct {
	Matched  bool // a pair was completed
	Hidden   bool // the reveal mismatched and both tiles flipped back
	Partner  int  // index of the turn's first tile when Matched or Hidden, -1 otherwise
	Bonus    int  // XP to award (MatchBonus on a match, 0 otherwise)
	Finished bool // all pairs are matched
}

// NewMatchGame builds a shuffled board from the phrase. Words shorter than
// three characters are skipped; fewer than two eligible words means the game
// cannot start.
func NewMatchGame(phrase string, rnd *rand.Rand) (*MatchGame, error) {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var words []string
	for _, w := range strings.Fields(phrase) {
		if len([]rune(w)) > minMatchWordLen {
			words = append(words, w)
		}
		if len(words) == 6 {
			break
		}
	}
	if len(words) < 2 {
		return nil, ErrNotEnoughWords
	}
	if len(words) > maxMatchPairs {
		words = words[:maxMatchPairs]
	}

	tiles := make([]Tile, 0, len(words)*2)
	for i, w := range words {
		tiles = append(tiles,
			Tile{Text: w, PairID: i},
			Tile{Text: reverse(w), PairID: i},
		)
	}

	rnd.Shuffle(len(tiles), func(i, j int) {
		tiles[i], tiles[j] = tiles[j], tiles[i]
	})

	return &MatchGame{Tiles: tiles, pairs: len(words), first: -1}, nil
}

// Pairs returns the number of pairs on the board
func (g *MatchGame) Pairs() int {
	return g.pairs
}

// Finished reports whether every pair has been matched
func (g *MatchGame) Finished() bool {
	return g.matched == g.pairs
}

// Reveal flips the tile at index i. The first reveal of a turn stays open;
// the second either completes a pair (both tiles stay revealed) or flips both
// tiles back face down. Revealing a matched or already open tile is a no-op.
func (g *MatchGame) Reveal(i int) RevealOutcome {
	if i < 0 || i >= len(g.Tiles) {
		return RevealOutcome{Partner: -1}
	}
	tile := &g.Tiles[i]
	if tile.Revealed || tile.Matched {
		return RevealOutcome{Partner: -1}
	}

	tile.Revealed = true

	if g.first < 0 {
		g.first = i
		return RevealOutcome{Partner: -1}
	}

	firstIdx := g.first
	first := &g.Tiles[firstIdx]
	g.first = -1

	if first.PairID == tile.PairID {
		// A correct pair stays revealed
		first.Matched = true
		tile.Matched = true
		g.matched++
		return RevealOutcome{
			Matched:  true,
			Partner:  firstIdx,
			Bonus:    MatchBonus,
			Finished: g.Finished(),
		}
	}

	// Mismatch: both tiles go back face down
	first.Revealed = false
	tile.Revealed = false
	return RevealOutcome{Hidden: true, Partner: firstIdx}
}

// reverse returns the string with its characters in reverse order
func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
