package games

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChoiceGameFourDistinctChoices(t *testing.T) {
	phrases := []string{
		"Good morning everyone",
		"solo una palabra aqui",
		"elephant",
		"programming language learning experience",
	}
	for seed := int64(0); seed < 20; seed++ {
		for _, phrase := range phrases {
			g, err := NewChoiceGame(phrase, rand.New(rand.NewSource(seed)))
			require.NoError(t, err, "phrase %q seed %d", phrase, seed)

			assert.Len(t, g.Choices, 4)

			seen := make(map[string]bool)
			for _, c := range g.Choices {
				assert.False(t, seen[c], "duplicate choice %q for %q", c, phrase)
				seen[c] = true
			}
			assert.True(t, seen[g.Answer()], "answer must be among the choices")
		}
	}
}

func TestChoiceGameAnswerComesFromPhrase(t *testing.T) {
	phrase := "elephant tiger crocodile"
	g, err := NewChoiceGame(phrase, testRand())
	require.NoError(t, err)

	assert.Contains(t, strings.Fields(phrase), g.Answer())
}

func TestChoiceGameNoEligibleWord(t *testing.T) {
	_, err := NewChoiceGame("el un los y", testRand())
	assert.ErrorIs(t, err, ErrNoEligibleWord)

	// Every word is exactly at the length cutoff.
	_, err = NewChoiceGame("The cat sat on the mat", testRand())
	assert.ErrorIs(t, err, ErrNoEligibleWord)

	_, err = NewChoiceGame("", testRand())
	assert.ErrorIs(t, err, ErrNoEligibleWord)
}

func TestChoiceGameCorrectGuessAwardsOnce(t *testing.T) {
	g, err := NewChoiceGame("elephant tiger crocodile", testRand())
	require.NoError(t, err)

	answer := -1
	for i, c := range g.Choices {
		if c == g.Answer() {
			answer = i
		}
	}
	require.GreaterOrEqual(t, answer, 0)

	out := g.Guess(answer)
	assert.True(t, out.Correct)
	assert.Equal(t, ChoiceBonus, out.Bonus)
	assert.True(t, g.Won())

	// A repeated correct selection pays nothing extra
	out = g.Guess(answer)
	assert.True(t, out.Correct)
	assert.Zero(t, out.Bonus)
}

func TestChoiceGameWrongGuessIsFree(t *testing.T) {
	g, err := NewChoiceGame("elephant tiger crocodile", testRand())
	require.NoError(t, err)

	wrong := -1
	for i, c := range g.Choices {
		if c != g.Answer() {
			wrong = i
			break
		}
	}
	require.GreaterOrEqual(t, wrong, 0)

	out := g.Guess(wrong)
	assert.False(t, out.Correct)
	assert.Zero(t, out.Bonus)
	assert.False(t, g.Won())

	// The game is still winnable afterwards
	for i, c := range g.Choices {
		if c == g.Answer() {
			out = g.Guess(i)
		}
	}
	assert.True(t, out.Correct)
	assert.Equal(t, ChoiceBonus, out.Bonus)
}
