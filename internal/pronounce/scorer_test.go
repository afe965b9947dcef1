package pronounce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreIdenticalPhrase(t *testing.T) {
	phrases := []string{
		"The cat sat on the mat",
		"hello",
		"¿Cómo estás?",
		"one two three",
	}
	for _, p := range phrases {
		assert.Equal(t, 100, Score(p, p), "phrase %q should match itself", p)
	}
}

func TestScoreBothEmpty(t *testing.T) {
	assert.Equal(t, 100, Score("", ""))
	// Strings that normalize to empty are treated the same way
	assert.Equal(t, 100, Score("!!!", "..."))
}

func TestScoreKnownDistance(t *testing.T) {
	// Edit distance 1, max length 3: round((1-1/3)*100) = 67
	assert.Equal(t, 67, Score("cat", "cot"))
}

func TestScoreBounds(t *testing.T) {
	cases := [][2]string{
		{"cat", "dog"},
		{"", "completely different"},
		{"short", "a very long sentence that shares nothing"},
		{"The cat sat on the mat", "el gato"},
	}
	for _, c := range cases {
		s := Score(c[0], c[1])
		assert.GreaterOrEqual(t, s, 0, "Score(%q, %q)", c[0], c[1])
		assert.LessOrEqual(t, s, 100, "Score(%q, %q)", c[0], c[1])
	}
}

func TestScoreIgnoresCaseAndPunctuation(t *testing.T) {
	assert.Equal(t, 100, Score("The cat sat on the mat", "the cat sat on the mat"))
	assert.Equal(t, 100, Score("Hello, world!", "hello world"))
}

func TestScoreSymmetricOnNormalizedInputs(t *testing.T) {
	pairs := [][2]string{
		{"cat", "cot"},
		{"the cat sat", "the dog sat"},
		{"abc", "abcdef"},
	}
	for _, p := range pairs {
		assert.Equal(t, Score(p[0], p[1]), Score(p[1], p[0]))
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hello world", Normalize("  Hello, World!  "))
	assert.Equal(t, "its 5 oclock", Normalize("It's 5 o'clock."))
	assert.Equal(t, "", Normalize("¡¿!?"))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, Levenshtein("", ""))
	assert.Equal(t, 3, Levenshtein("", "abc"))
	assert.Equal(t, 3, Levenshtein("abc", ""))
	assert.Equal(t, 1, Levenshtein("cat", "cot"))
	assert.Equal(t, 3, Levenshtein("kitten", "sitting"))
	assert.Equal(t, 2, Levenshtein("flaw", "lawn"))
}
