package codegen

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAlphabet(t *testing.T) {
	if got := len(Alphabet); got != 56 {
		t.Fatalf("len(Alphabet) = %d, want 56", got)
	}
	for _, ambiguous := range "0O1lIo" {
		if strings.ContainsRune(Alphabet, ambiguous) {
			t.Errorf("Alphabet contains ambiguous glyph %q", ambiguous)
		}
	}
	seen := make(map[rune]bool)
	for _, c := range Alphabet {
		if seen[c] {
			t.Errorf("Alphabet repeats glyph %q", c)
		}
		seen[c] = true
	}
}

func generators() map[string]Generator {
	return map[string]Generator{
		"nanoid": New(),
		"reader": NewWithSource(nil),
	}
}

func TestGenerator_Generate(t *testing.T) {
	for name, gen := range generators() {
		t.Run(name+"/generates code of correct length", func(t *testing.T) {
			for _, length := range []int{1, 2, 3, 4, 5, 6, 7, 10, 32} {
				code, err := gen.Generate(length)
				if err != nil {
					t.Fatalf("Generate(%d) unexpected error: %v", length, err)
				}
				if len(code) != length {
					t.Errorf("Generate(%d) returned length %d", length, len(code))
				}
				if !IsAlphabetCode(code) {
					t.Errorf("Generate(%d) = %q contains glyphs outside the alphabet", length, code)
				}
			}
		})

		t.Run(name+"/generates unique codes", func(t *testing.T) {
			seen := make(map[string]bool)
			for i := 0; i < 1000; i++ {
				code, err := gen.Generate(10)
				if err != nil {
					t.Fatalf("Generate() unexpected error: %v", err)
				}
				if seen[code] {
					t.Fatalf("Generate() produced duplicate code %q", code)
				}
				seen[code] = true
			}
		})

		t.Run(name+"/rejects non-positive length", func(t *testing.T) {
			for _, length := range []int{0, -1} {
				if _, err := gen.Generate(length); err == nil {
					t.Errorf("Generate(%d) expected error, got nil", length)
				}
			}
		})

		t.Run(name+"/concurrent generation is safe", func(t *testing.T) {
			const goroutines = 20
			var wg sync.WaitGroup
			errs := make(chan error, goroutines)
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 50; j++ {
						if _, err := gen.Generate(5 + j%4); err != nil {
							errs <- err
							return
						}
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Errorf("concurrent Generate() error: %v", err)
			}
		})
	}
}

func TestNewWithSource(t *testing.T) {
	t.Run("maps bytes onto the alphabet", func(t *testing.T) {
		gen := NewWithSource(bytes.NewReader([]byte{0, 1, 2, 55, 56, 0, 0, 0, 0, 0, 0, 0}))
		code, err := gen.Generate(5)
		if err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		want := string([]byte{Alphabet[0], Alphabet[1], Alphabet[2], Alphabet[55], Alphabet[0]})
		if code != want {
			t.Errorf("Generate() = %q, want %q", code, want)
		}
	})

	t.Run("skips biased bytes", func(t *testing.T) {
		if rejectAbove != 224 {
			t.Fatalf("rejectAbove = %d, want 224", rejectAbove)
		}
		src := bytes.NewReader([]byte{255, 224, 223, 240, 4, 0, 0, 0, 0, 0})
		gen := NewWithSource(src)
		code, err := gen.Generate(2)
		if err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		want := string([]byte{Alphabet[55], Alphabet[4]})
		if code != want {
			t.Errorf("Generate() = %q, want %q", code, want)
		}
	})

	t.Run("propagates entropy errors", func(t *testing.T) {
		gen := NewWithSource(bytes.NewReader(nil))
		_, err := gen.Generate(4)
		if err == nil {
			t.Fatal("Generate() expected error, got nil")
		}
	})
}

func TestEncode(t *testing.T) {
	tests := []struct {
		id   uint64
		want string
	}{
		{0, "2"},
		{1, "3"},
		{55, "z"},
		{56, "32"},
		{56*56 + 1, "323"},
	}
	for _, tt := range tests {
		if got := Encode(tt.id); got != tt.want {
			t.Errorf("Encode(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}

	t.Run("max uint64 fits", func(t *testing.T) {
		got := Encode(^uint64(0))
		if len(got) != 12 {
			t.Errorf("Encode(max) length = %d, want 12", len(got))
		}
	})
}

func TestGenerator_GenerateFromID(t *testing.T) {
	for name, gen := range generators() {
		t.Run(name+"/pads low ids to min length", func(t *testing.T) {
			code, err := gen.GenerateFromID(56, 6)
			if err != nil {
				t.Fatalf("GenerateFromID() unexpected error: %v", err)
			}
			if len(code) != 6 {
				t.Fatalf("len = %d, want 6", len(code))
			}
			if !strings.HasSuffix(code, "32") {
				t.Errorf("GenerateFromID(56, 6) = %q, want suffix %q", code, "32")
			}
			if !IsAlphabetCode(code) {
				t.Errorf("GenerateFromID() = %q contains glyphs outside the alphabet", code)
			}
		})

		t.Run(name+"/does not truncate long encodings", func(t *testing.T) {
			code, err := gen.GenerateFromID(^uint64(0), 3)
			if err != nil {
				t.Fatalf("GenerateFromID() unexpected error: %v", err)
			}
			if code != Encode(^uint64(0)) {
				t.Errorf("GenerateFromID() = %q, want %q", code, Encode(^uint64(0)))
			}
		})

		t.Run(name+"/distinct ids give distinct codes without padding", func(t *testing.T) {
			seen := make(map[string]uint64)
			for id := uint64(0); id < 5000; id++ {
				code, err := gen.GenerateFromID(id, 0)
				if err != nil {
					t.Fatalf("GenerateFromID(%d) unexpected error: %v", id, err)
				}
				if prev, dup := seen[code]; dup {
					t.Fatalf("ids %d and %d both encode to %q", prev, id, code)
				}
				seen[code] = id
			}
		})
	}
}

func TestGenerator_ShortDraws(t *testing.T) {
	// Sequence ids leave pads of one to four glyphs once they outgrow the
	// minimum length: 56^2 encodes to 3 glyphs, 56^5 to 6.
	fromID := []struct {
		id        uint64
		minLength int
	}{
		{3136, 7},
		{175616, 7},
		{9834496, 7},
		{550731776, 7},
	}

	for name, gen := range generators() {
		t.Run(name, func(t *testing.T) {
			done := make(chan struct{})
			go func() {
				defer close(done)
				for length := 1; length <= 4; length++ {
					code, err := gen.Generate(length)
					if err != nil {
						t.Errorf("Generate(%d) unexpected error: %v", length, err)
						continue
					}
					if len(code) != length || !IsAlphabetCode(code) {
						t.Errorf("Generate(%d) = %q", length, code)
					}
				}
				for _, tt := range fromID {
					code, err := gen.GenerateFromID(tt.id, tt.minLength)
					if err != nil {
						t.Errorf("GenerateFromID(%d, %d) unexpected error: %v", tt.id, tt.minLength, err)
						continue
					}
					if len(code) != tt.minLength || !strings.HasSuffix(code, Encode(tt.id)) {
						t.Errorf("GenerateFromID(%d, %d) = %q, want suffix %q", tt.id, tt.minLength, code, Encode(tt.id))
					}
				}
			}()

			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("short draws did not return within 5s")
			}
		})
	}
}

func TestGenerateFromID_PadError(t *testing.T) {
	gen := NewWithSource(&failingReader{})
	if _, err := gen.GenerateFromID(1, 8); err == nil {
		t.Fatal("GenerateFromID() expected error when padding fails, got nil")
	}
}

func TestIsAlphabetCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"", false},
		{"abc234", true},
		{"abc0", false},
		{"Hello", false},
		{"my-link", false},
	}
	for _, tt := range tests {
		if got := IsAlphabetCode(tt.code); got != tt.want {
			t.Errorf("IsAlphabetCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }
