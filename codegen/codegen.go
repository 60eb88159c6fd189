// Package codegen produces short codes drawn from an alphabet without
// visually ambiguous glyphs. Generators are safe for concurrent use.
package codegen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	nanoid "github.com/jaevor/go-nanoid"
)

// Alphabet is the 56-glyph code alphabet. It leaves out 0, O, o, 1, l and I.
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz"

// Base is the radix used by GenerateFromID.
const Base = uint64(len(Alphabet))

var errNonPositiveLength = errors.New("length must be positive")

// minDrawLength is the shortest id go-nanoid draws reliably: CustomASCII
// reads entropy in steps of (length/5)*8 bytes, which is zero below five.
const minDrawLength = 5

// Generator produces short codes.
type Generator interface {
	// Generate returns a code of exactly length glyphs drawn uniformly from Alphabet.
	Generate(length int) (string, error)
	// GenerateFromID encodes id in base 56 and left-pads the result with
	// random glyphs until it is at least minLength long.
	GenerateFromID(id uint64, minLength int) (string, error)
}

/***************
 * nanoid-backed generator
 ***************/

type nanoidGenerator struct {
	mu   sync.RWMutex
	byLn map[int]func() string
}

// New returns the default Generator. Random draws come from go-nanoid, which
// reads crypto/rand and masks bytes onto the alphabet without modulo bias.
func New() Generator {
	return &nanoidGenerator{byLn: make(map[int]func() string)}
}

func (g *nanoidGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errNonPositiveLength
	}
	next, err := g.forLength(max(length, minDrawLength))
	if err != nil {
		return "", err
	}
	// Every glyph of a draw is independent, so a prefix stays uniform.
	return next()[:length], nil
}

func (g *nanoidGenerator) GenerateFromID(id uint64, minLength int) (string, error) {
	return fromID(id, minLength, g.Generate)
}

// forLength returns the cached nanoid function for length, building it once.
// length must be at least minDrawLength.
func (g *nanoidGenerator) forLength(length int) (func() string, error) {
	g.mu.RLock()
	next, ok := g.byLn[length]
	g.mu.RUnlock()
	if ok {
		return next, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if next, ok := g.byLn[length]; ok {
		return next, nil
	}
	next, err := nanoid.CustomASCII(Alphabet, length)
	if err != nil {
		return nil, fmt.Errorf("codegen: build generator for length %d: %w", length, err)
	}
	g.byLn[length] = next
	return next, nil
}

/***************
 * io.Reader-backed generator
 ***************/

type readerGenerator struct {
	mu  sync.Mutex
	src io.Reader
}

// NewWithSource returns a Generator that draws entropy from src using
// rejection sampling. A nil src means crypto/rand.Reader.
func NewWithSource(src io.Reader) Generator {
	if src == nil {
		src = rand.Reader
	}
	return &readerGenerator{src: src}
}

// rejectAbove is the largest multiple of Base that fits in a byte; bytes at
// or above it are discarded to keep the draw uniform.
const rejectAbove = 256 - (256 % Base)

func (g *readerGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errNonPositiveLength
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/2+1)
	for len(out) < length {
		if _, err := io.ReadFull(g.src, buf); err != nil {
			return "", fmt.Errorf("codegen: read entropy: %w", err)
		}
		for _, b := range buf {
			if uint64(b) >= rejectAbove {
				continue
			}
			out = append(out, Alphabet[uint64(b)%Base])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

func (g *readerGenerator) GenerateFromID(id uint64, minLength int) (string, error) {
	return fromID(id, minLength, g.Generate)
}

/***************
 * Helpers
 ***************/

// Encode returns the base-56 representation of id, most significant glyph
// first. Zero encodes as the first glyph of Alphabet.
func Encode(id uint64) string {
	if id == 0 {
		return Alphabet[:1]
	}
	var buf [12]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = Alphabet[id%Base]
		id /= Base
	}
	return string(buf[i:])
}

func fromID(id uint64, minLength int, random func(int) (string, error)) (string, error) {
	encoded := Encode(id)
	if minLength <= len(encoded) {
		return encoded, nil
	}
	pad, err := random(minLength - len(encoded))
	if err != nil {
		return "", err
	}
	return pad + encoded, nil
}

// IsAlphabetCode reports whether code is non-empty and made only of Alphabet glyphs.
func IsAlphabetCode(code string) bool {
	if code == "" {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(Alphabet, c) {
			return false
		}
	}
	return true
}
