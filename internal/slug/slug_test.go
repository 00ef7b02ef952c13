package slug

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlphabet(t *testing.T) {
	tests := []struct {
		name string
		opts AlphabetOptions
		want string
	}{
		{
			name: "lowercase only",
			opts: AlphabetOptions{Lowercase: true},
			want: lowercaseChars,
		},
		{
			name: "all classes",
			opts: AlphabetOptions{Lowercase: true, Uppercase: true, Digits: true, Special: true},
			want: lowercaseChars + uppercaseChars + digitChars + specialChars,
		},
		{
			name: "digits and special",
			opts: AlphabetOptions{Digits: true, Special: true},
			want: digitChars + specialChars,
		},
		{
			name: "empty selection falls back to lowercase",
			opts: AlphabetOptions{},
			want: lowercaseChars,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Alphabet(tt.opts))
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"simple", "abc123", true},
		{"with dash and underscore", "my-slug_1", true},
		{"single char", "a", true},
		{"empty", "", false},
		{"whitespace", "ab c", false},
		{"slash", "a/b", false},
		{"unicode", "slüg", false},
		{"reserved api", "api", false},
		{"reserved admin uppercase", "Admin", false},
		{"reserved ping", "ping", false},
		{"reserved prefix is fine", "apiary", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.candidate))
		})
	}
}

type fakeChecker struct {
	mu    sync.Mutex
	taken map[string]struct{}
	err   error
	calls int
}

func (c *fakeChecker) SlugExists(_ context.Context, slug string, _ bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if c.err != nil {
		return false, c.err
	}
	_, ok := c.taken[slug]
	return ok, nil
}

func TestGenerator_Generate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		checker := &fakeChecker{taken: map[string]struct{}{}}
		gen := NewGenerator(checker, AlphabetOptions{Lowercase: true, Digits: true}, true)

		got, err := gen.Generate(context.Background(), 7)

		assert.NoError(t, err)
		assert.Len(t, got, 7)
		assert.True(t, IsValid(got))
	})

	t.Run("checker error", func(t *testing.T) {
		checker := &fakeChecker{err: errors.New("db down")}
		gen := NewGenerator(checker, AlphabetOptions{Lowercase: true}, true)

		got, err := gen.Generate(context.Background(), 7)

		assert.Error(t, err)
		assert.Empty(t, got)
	})

	t.Run("length grows after repeated collisions", func(t *testing.T) {
		// Single-character alphabet makes every draw of a given length
		// identical, so marking it taken forces the length to grow.
		checker := &fakeChecker{taken: map[string]struct{}{"a": {}, "aa": {}}}
		gen := &Generator{checker: checker, alphabet: "a", caseSensitive: true}

		got, err := gen.Generate(context.Background(), 1)

		assert.NoError(t, err)
		assert.Equal(t, "aaa", got)
		assert.GreaterOrEqual(t, checker.calls, 2*maxAttemptsPerLength+1)
	})

	t.Run("non-positive length is clamped", func(t *testing.T) {
		checker := &fakeChecker{taken: map[string]struct{}{}}
		gen := NewGenerator(checker, AlphabetOptions{Lowercase: true}, true)

		got, err := gen.Generate(context.Background(), 0)

		assert.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		checker := &fakeChecker{taken: map[string]struct{}{}}
		gen := NewGenerator(checker, AlphabetOptions{Lowercase: true}, true)

		got, err := gen.Generate(ctx, 7)

		assert.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, got)
	})

	t.Run("repeated generation stays unique", func(t *testing.T) {
		checker := &fakeChecker{taken: map[string]struct{}{}}
		gen := NewGenerator(checker, AlphabetOptions{Lowercase: true, Uppercase: true, Digits: true}, true)

		seen := make(map[string]struct{})
		for i := 0; i < 100; i++ {
			got, err := gen.Generate(context.Background(), 8)
			assert.NoError(t, err)

			_, dup := seen[got]
			assert.False(t, dup, "duplicate slug %q", got)

			seen[got] = struct{}{}
			checker.mu.Lock()
			checker.taken[got] = struct{}{}
			checker.mu.Unlock()
		}
	})
}
