// Package variation produces and manages alternate phrasings of the
// base outreach message, as a best-effort anti-duplicate-content
// measure. The generators are deliberately lossy: a variant may equal
// the base text verbatim.
package variation

import (
	"math/rand"
	"strings"
	"unicode"
	"unicode/utf8"
)

// synonyms maps trigger phrases to their replacement candidates.
var synonyms = map[string][]string{
	"interested":  {"keen on", "excited about", "passionate about", "drawn to"},
	"opportunity": {"position", "role", "opening", "job"},
	"experience":  {"background", "expertise", "skills", "knowledge"},
	"would love":  {"would be thrilled", "am eager", "would welcome", "am excited"},
	"discuss":     {"chat about", "talk about", "explore", "review"},
	"thank you":   {"thanks", "appreciate", "grateful"},
	"help":        {"assistance", "guidance", "support", "advice"},
	"connect":     {"reach out", "get in touch", "contact", "communicate"},
}

// synonymOrder fixes the iteration order so a seeded source gives
// reproducible output.
var synonymOrder = []string{
	"interested", "opportunity", "experience", "would love",
	"discuss", "thank you", "help", "connect",
}

// SynonymGenerator creates message variants by probabilistic phrase
// substitution. The randomness source is injectable so callers can fix
// the seed.
type SynonymGenerator struct {
	rng *rand.Rand
}

// NewSynonymGenerator creates a generator backed by the given source.
func NewSynonymGenerator(rng *rand.Rand) *SynonymGenerator {
	return &SynonymGenerator{rng: rng}
}

// Generate returns exactly count variants of base. Each variant decides
// independently, per trigger phrase present, whether to swap it for a
// random alternative.
func (g *SynonymGenerator) Generate(base string, count int) []string {
	variants := make([]string, 0, count)
	for i := 0; i < count; i++ {
		variants = append(variants, g.vary(base, 0.5))
	}
	return variants
}

// GenerateWithOriginal returns exactly count variants with the
// unmodified base as element 0. count must be >= 1. This is the local
// fallback used when no AI provider is available.
func (g *SynonymGenerator) GenerateWithOriginal(base string, count int) []string {
	variants := make([]string, 0, count)
	variants = append(variants, base)
	for i := 1; i < count; i++ {
		variants = append(variants, g.vary(base, 0.4))
	}
	return variants
}

// vary applies one round of substitutions. A trigger is replaced when a
// uniform draw exceeds threshold.
func (g *SynonymGenerator) vary(base string, threshold float64) string {
	out := base
	for _, trigger := range synonymOrder {
		if !containsFold(out, trigger) {
			continue
		}
		if g.rng.Float64() <= threshold {
			continue
		}
		alts := synonyms[trigger]
		out = replaceAllFold(out, trigger, alts[g.rng.Intn(len(alts))])
	}
	return out
}

// containsFold reports whether s contains substr, case-insensitively.
func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	for i := range s {
		if foldMatchLen(s[i:], substr) > 0 {
			return true
		}
	}
	return false
}

// replaceAllFold replaces every case-insensitive occurrence of old in s
// with new. Matching is rune by rune: lowercasing can change a rune's
// byte length, so byte offsets into a ToLower copy cannot be used to
// slice the original.
func replaceAllFold(s, old, new string) string {
	if old == "" {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); {
		if n := foldMatchLen(s[i:], old); n > 0 {
			b.WriteString(new)
			i += n
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}

// foldMatchLen returns how many bytes at the start of s match target
// case-insensitively, or 0 when they do not match.
func foldMatchLen(s, target string) int {
	n := 0
	for _, tr := range target {
		r, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 {
			return 0
		}
		if unicode.ToLower(r) != unicode.ToLower(tr) {
			return 0
		}
		n += size
	}
	return n
}
