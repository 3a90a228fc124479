// internal/variator/variator_test.go
package variator

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// letters reduces a string to its letter/digit sequence. Emoji swaps,
// spacing jitter and punctuation variants must never touch it.
func letters(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func TestVaryNeverEmptiesInput(t *testing.T) {
	v := New(WithRand(rand.New(rand.NewSource(42))))
	input := "Big sale today! 🔥\nCheck our channel.\nLimited stock!"

	for i := 0; i < 200; i++ {
		out := v.Vary(input)
		assert.NotEmpty(t, out)
	}
}

func TestVaryNeverAddsLineBreaks(t *testing.T) {
	v := New(WithRand(rand.New(rand.NewSource(7))))
	input := "First line! 🔥\nSecond line.\nThird line"
	inputLines := 3

	for i := 0; i < 200; i++ {
		out := v.Vary(input)
		assert.LessOrEqual(t, len(strings.Split(out, "\n")), inputLines)
	}
}

func TestVaryPreservesLineOrderWithoutShuffle(t *testing.T) {
	v := New(
		WithRand(rand.New(rand.NewSource(11))),
		WithShuffleLines(false),
	)
	input := "alpha one!\nbravo two.\ncharlie three"

	for i := 0; i < 200; i++ {
		out := v.Vary(input)
		outLines := strings.Split(out, "\n")
		assert.Len(t, outLines, 3)
		assert.Equal(t, "alphaone", letters(outLines[0]))
		assert.Equal(t, "bravotwo", letters(outLines[1]))
		assert.Equal(t, "charliethree", letters(outLines[2]))
	}
}

func TestVaryPreservesLetterContent(t *testing.T) {
	v := New(WithRand(rand.New(rand.NewSource(3))))
	input := "Huge discount 50 percent! 🔥\nJoin now."

	for i := 0; i < 200; i++ {
		out := v.Vary(input)
		// shuffling reorders lines but letters within the whole message
		// survive; compare as sorted per-line sets
		inSet := lineLetterSet(input)
		outSet := lineLetterSet(out)
		assert.Equal(t, inSet, outSet)
	}
}

func lineLetterSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, line := range strings.Split(s, "\n") {
		if l := letters(line); l != "" {
			set[l] = true
		}
	}
	return set
}

func TestVarySometimesPassesThroughAndSometimesVaries(t *testing.T) {
	v := New(
		WithRand(rand.New(rand.NewSource(99))),
		WithShuffleLines(false),
	)
	// the double space collapses whenever variation runs, so varied
	// output is distinguishable from passthrough
	input := "Flash  sale today!"

	unchanged, changed := 0, 0
	for i := 0; i < 400; i++ {
		if v.Vary(input) == input {
			unchanged++
		} else {
			changed++
		}
	}

	assert.Greater(t, unchanged, 0, "expected occasional passthrough")
	assert.Greater(t, changed, 0, "expected frequent variation")
	assert.Greater(t, changed, unchanged, "variation should dominate")
}

func TestVaryReplacesEmojisFromPalette(t *testing.T) {
	v := New(
		WithRand(rand.New(rand.NewSource(5))),
		WithShuffleLines(false),
		WithPalettes([][]string{{"⚡"}}),
	)
	input := "Deal of the day 🔥"

	sawReplacement := false
	for i := 0; i < 100; i++ {
		out := v.Vary(input)
		if strings.Contains(out, "⚡") {
			sawReplacement = true
			assert.NotContains(t, out, "🔥")
		}
	}
	assert.True(t, sawReplacement)
}

func TestVaryEmptyAndWhitespaceInput(t *testing.T) {
	v := New(WithRand(rand.New(rand.NewSource(1))))

	assert.Equal(t, "", v.Vary(""))
	// whitespace-only input has no content lines and passes through
	assert.Equal(t, "   ", v.Vary("   "))
}
