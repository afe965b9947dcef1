package games

import (
	"errors"
	"math/rand"
	"strings"
	"time"
)

const (
	// ChoiceBonus is the XP awarded for answering correctly
	ChoiceBonus = 10
	// choiceCount is the number of options presented
	choiceCount = 4
	// minChoiceWordLen is the minimum word length (exclusive) for an answer
	minChoiceWordLen = 3
	// maxDistractorLen truncates fallback distractors
	maxDistractorLen = 6
)

// ErrNoEligibleWord signals that the phrase has no word long enough to quiz
var ErrNoEligibleWord = errors.New("no word long enough for a multiple-choice question")

// ChoiceGame is a single multiple-choice question: which of these words
// appears in the phrase?
type ChoiceGame struct {
	Phrase  string
	Choices []string

	answer int
	won    bool
}

// GuessOutcome describes the result of one selection
type GuessOutcome struct {
	Correct bool
	Bonus   int // ChoiceBonus on the first correct selection, 0 otherwise
}

// NewChoiceGame picks a random word longer than three characters as the
// answer and fills the remaining slots with distinct distractors: other
// phrase words when available, random fallback tokens otherwise.
func NewChoiceGame(phrase string, rnd *rand.Rand) (*ChoiceGame, error) {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var words []string
	for _, w := range strings.Fields(phrase) {
		if len([]rune(w)) > minChoiceWordLen {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return nil, ErrNoEligibleWord
	}

	target := words[rnd.Intn(len(words))]
	choices := []string{target}

	for len(choices) < choiceCount {
		candidate := words[rnd.Intn(len(words))]
		if len([]rune(candidate)) > maxDistractorLen {
			candidate = string([]rune(candidate)[:maxDistractorLen])
		}
		if contains(choices, candidate) {
			// Phrase words are exhausted or colliding, fall back to a token
			candidate = fallbackToken(rnd)
			if contains(choices, candidate) {
				continue
			}
		}
		choices = append(choices, candidate)
	}

	rnd.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})

	answer := 0
	for i, c := range choices {
		if c == target {
			answer = i
			break
		}
	}

	return &ChoiceGame{Phrase: phrase, Choices: choices, answer: answer}, nil
}

// Answer returns the text of the correct choice
func (g *ChoiceGame) Answer() string {
	return g.Choices[g.answer]
}

// Won reports whether the question has been answered correctly
func (g *ChoiceGame) Won() bool {
	return g.won
}

// Guess selects the choice at index i. An incorrect guess changes nothing
// and costs nothing; the player simply tries again. The bonus is paid only
// on the first correct selection.
func (g *ChoiceGame) Guess(i int) GuessOutcome {
	if i < 0 || i >= len(g.Choices) {
		return GuessOutcome{}
	}
	if i != g.answer {
		return GuessOutcome{}
	}
	if g.won {
		return GuessOutcome{Correct: true}
	}
	g.won = true
	return GuessOutcome{Correct: true, Bonus: ChoiceBonus}
}

// fallbackToken generates a short random token used as a distractor when the
// phrase itself cannot supply enough distinct words
func fallbackToken(rnd *rand.Rand) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, maxDistractorLen)
	for i := range b {
		b[i] = alphabet[rnd.Intn(len(alphabet))]
	}
	return string(b)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
