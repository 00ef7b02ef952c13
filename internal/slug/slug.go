// Package slug generates and validates the short tokens that identify links.
package slug

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	lowercaseChars = "abcdefghijklmnopqrstuvwxyz"
	uppercaseChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars     = "0123456789"
	specialChars   = "-_"

	// maxAttemptsPerLength bounds collision retries before the slug length
	// is grown by one.
	maxAttemptsPerLength = 10
)

var validSlug = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// reservedSlugs are path segments owned by the host application. Slugs
// matching one of them would shadow real routes.
var reservedSlugs = map[string]struct{}{
	"admin":       {},
	"api":         {},
	"assets":      {},
	"favicon.ico": {},
	"health":      {},
	"login":       {},
	"logout":      {},
	"ping":        {},
	"robots.txt":  {},
	"static":      {},
}

// AlphabetOptions selects the character classes used for generated slugs.
type AlphabetOptions struct {
	Lowercase bool
	Uppercase bool
	Digits    bool
	Special   bool
}

// Alphabet builds the generation alphabet from the selected classes. An
// empty selection falls back to lowercase letters.
func Alphabet(opts AlphabetOptions) string {
	var b strings.Builder

	if opts.Lowercase {
		b.WriteString(lowercaseChars)
	}
	if opts.Uppercase {
		b.WriteString(uppercaseChars)
	}
	if opts.Digits {
		b.WriteString(digitChars)
	}
	if opts.Special {
		b.WriteString(specialChars)
	}

	if b.Len() == 0 {
		return lowercaseChars
	}

	return b.String()
}

// IsValid reports whether candidate is usable as a slug: allowed charset
// only, and not a reserved host-application path.
func IsValid(candidate string) bool {
	if !validSlug.MatchString(candidate) {
		return false
	}

	_, reserved := reservedSlugs[strings.ToLower(candidate)]
	return !reserved
}

// SlugChecker reports whether a slug is already taken.
type SlugChecker interface {
	SlugExists(ctx context.Context, slug string, caseSensitive bool) (bool, error)
}

// Generator produces random slugs that are unique in the backing store.
type Generator struct {
	checker       SlugChecker
	alphabet      string
	caseSensitive bool
}

func NewGenerator(checker SlugChecker, opts AlphabetOptions, caseSensitive bool) *Generator {
	return &Generator{
		checker:       checker,
		alphabet:      Alphabet(opts),
		caseSensitive: caseSensitive,
	}
}

// Generate draws random slugs of the given length until one is unique.
// After maxAttemptsPerLength collisions the length grows by one and the
// attempt counter resets; collisions get exponentially rarer as the length
// grows, so the loop terminates.
func (g *Generator) Generate(ctx context.Context, length int) (string, error) {
	const op = "slug.Generator.Generate"

	if length < 1 {
		length = 1
	}

	for {
		for attempt := 0; attempt < maxAttemptsPerLength; attempt++ {
			if err := ctx.Err(); err != nil {
				return "", fmt.Errorf("%s: %w", op, err)
			}

			candidate, err := gonanoid.Generate(g.alphabet, length)
			if err != nil {
				return "", fmt.Errorf("%s: failed to generate slug: %w", op, err)
			}

			if !IsValid(candidate) {
				continue
			}

			exists, err := g.checker.SlugExists(ctx, candidate, g.caseSensitive)
			if err != nil {
				return "", fmt.Errorf("%s: failed to check slug uniqueness: %w", op, err)
			}
			if !exists {
				return candidate, nil
			}
		}

		length++
	}
}
