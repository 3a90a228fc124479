// internal/variator/variator.go

// Package variator produces humanized renderings of a message template so
// repeated sends don't share an exact fingerprint. It is a stylistic
// scrambler, intentionally non-deterministic.
package variator

import (
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
)

var defaultPalettes = [][]string{
	{"🔥", "✨", "🚀"},
	{"💥", "⚡", "🌟"},
	{"📢", "🛒", "💰"},
	{"🔔", "📌", "👉"},
}

var multiSpace = regexp.MustCompile(`\s{2,}`)

type Variator struct {
	mu            sync.Mutex
	rng           *rand.Rand
	palettes      [][]string
	shuffleLines  bool
	randomSpacing bool
}

type Option func(*Variator)

// WithShuffleLines toggles line-order shuffling.
func WithShuffleLines(enabled bool) Option {
	return func(v *Variator) { v.shuffleLines = enabled }
}

// WithRandomSpacing toggles whitespace jitter.
func WithRandomSpacing(enabled bool) Option {
	return func(v *Variator) { v.randomSpacing = enabled }
}

// WithPalettes replaces the pictograph palettes.
func WithPalettes(palettes [][]string) Option {
	return func(v *Variator) { v.palettes = palettes }
}

// WithRand replaces the randomness source. Test hook.
func WithRand(rng *rand.Rand) Option {
	return func(v *Variator) { v.rng = rng }
}

func New(opts ...Option) *Variator {
	v := &Variator{
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		palettes:      defaultPalettes,
		shuffleLines:  true,
		randomSpacing: true,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Vary returns a humanized rendering of text. About one in five calls
// returns the input unchanged to avoid over-varying.
func (v *Variator) Vary(text string) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.rng.Float64() < 0.2 {
		return text
	}

	lines := splitLines(text)
	if len(lines) == 0 {
		return text
	}

	if v.shuffleLines && len(lines) > 1 {
		v.rng.Shuffle(len(lines), func(i, j int) {
			lines[i], lines[j] = lines[j], lines[i]
		})
	}

	for i, line := range lines {
		lines[i] = v.varyLine(line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (v *Variator) varyLine(line string) string {
	line = v.swapEmojis(line)
	line = v.randomizeSpacing(line)
	line = v.softPunctuation(line)
	return strings.TrimSpace(line)
}

// swapEmojis replaces each pictograph with a random pick from a random
// palette.
func (v *Variator) swapEmojis(line string) string {
	var b strings.Builder
	for _, r := range line {
		if isEmoji(r) {
			palette := v.palettes[v.rng.Intn(len(v.palettes))]
			b.WriteString(palette[v.rng.Intn(len(palette))])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (v *Variator) randomizeSpacing(line string) string {
	if !v.randomSpacing {
		return line
	}

	line = multiSpace.ReplaceAllString(line, " ")

	if v.rng.Float64() < 0.3 {
		line = strings.Replace(line, " ", "  ", 1)
	}
	if v.rng.Float64() < 0.2 {
		line = strings.Replace(line, "!", "!!", 1)
	}
	return line
}

func (v *Variator) softPunctuation(line string) string {
	replacements := []struct {
		from     string
		variants []string
	}{
		{from: "!", variants: []string{"!", "!!"}},
		{from: ".", variants: []string{".", "..."}},
	}

	for _, r := range replacements {
		if strings.Contains(line, r.from) && v.rng.Float64() < 0.3 {
			line = strings.Replace(line, r.from, r.variants[v.rng.Intn(len(r.variants))], 1)
		}
	}
	return line
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// isEmoji covers the pictograph blocks the palettes draw from.
func isEmoji(r rune) bool {
	return r >= 0x1F300 && r <= 0x1FAFF
}
