// Package prompts assembles the per-session batch of transformation
// instructions: a shuffled selection from the curated pools plus, when the
// vision provider is available, dynamically generated instructions for the
// specific image. The batch always comes out at exactly the requested size.
package prompts

import (
	"context"
	"io"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog"

	"server/internal/infra"
	"server/internal/providers/vision"
)

// IdeaSource is the subset of the vision client the generator depends on.
type IdeaSource interface {
	GenerateIdeas(ctx context.Context, image []byte, n int) ([]string, error)
	ClassifySubject(ctx context.Context, image []byte) (vision.Pronoun, error)
	HasCredentials() bool
}

// Options configures a Generator.
type Options struct {
	// Source supplies dynamic instructions. Nil or credential-less sources
	// switch the generator to static-only mode.
	Source IdeaSource
	// StaticCount is how many entries of each batch come from the curated
	// pools; the remainder is generated per image.
	StaticCount int
	Rand        *rand.Rand
	Logger      *infra.Logger
}

// Generator produces prompt batches. One Generator is shared by all
// concurrent orchestration runs; the rand source is guarded because
// *rand.Rand is not safe for concurrent use.
type Generator struct {
	source      IdeaSource
	staticCount int
	mu          sync.Mutex
	rng         *rand.Rand
	logger      infra.Logger
}

// NewGenerator wires a Generator with defaults.
func NewGenerator(opts Options) *Generator {
	staticCount := opts.StaticCount
	if staticCount < 0 {
		staticCount = 0
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	var logger infra.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	} else {
		logger = zerolog.New(io.Discard)
	}
	return &Generator{
		source:      opts.Source,
		staticCount: staticCount,
		rng:         rng,
		logger:      logger,
	}
}

// Batch returns exactly count prompts for the image. Failures of the
// generative source are absorbed with fallback pool content; the method
// never errors and never returns empty entries.
func (g *Generator) Batch(ctx context.Context, image []byte, count int) []string {
	if count <= 0 {
		return nil
	}
	static := g.staticSelection(count)
	dynamic := g.dynamicSelection(ctx, image, count-len(static))
	batch := append(static, dynamic...)
	g.shuffle(batch)
	return batch[:count]
}

// Subject classifies the image's main subject, absorbing provider failures
// into the neutral default.
func (g *Generator) Subject(ctx context.Context, image []byte) vision.Pronoun {
	if g.source == nil || !g.source.HasCredentials() {
		return vision.PronounThey
	}
	pronoun, err := g.source.ClassifySubject(ctx, image)
	if err != nil {
		g.logger.Warn().Err(err).Msg("prompts: subject classification failed, defaulting to they")
		return vision.PronounThey
	}
	return pronoun
}

// staticSelection takes a random permutation prefix of the curated pools:
// one slice of character restylings, the rest from the diverse pool.
func (g *Generator) staticSelection(count int) []string {
	k := g.staticCount
	if k > count {
		k = count
	}
	characters := g.shuffledCopy(characterPool)
	diverse := g.shuffledCopy(diversePool)

	selected := make([]string, 0, count)
	charTake := min(k, len(characters))
	selected = append(selected, characters[:charTake]...)

	// In static-only mode the diverse pool fills the whole batch.
	limit := k
	if g.source == nil || !g.source.HasCredentials() {
		limit = count
	}
	for _, p := range diverse {
		if len(selected) >= limit {
			break
		}
		selected = append(selected, p)
	}
	return selected
}

// dynamicSelection asks the vision source for n instructions and pads any
// shortfall deterministically from the fallback pool.
func (g *Generator) dynamicSelection(ctx context.Context, image []byte, n int) []string {
	if n <= 0 {
		return nil
	}
	var ideas []string
	if g.source != nil && g.source.HasCredentials() {
		generated, err := g.source.GenerateIdeas(ctx, image, n)
		if err != nil {
			g.logger.Warn().Err(err).Msg("prompts: idea generation failed, substituting fallback pool")
		} else {
			ideas = generated
		}
	}
	for i := 0; len(ideas) < n; i++ {
		ideas = append(ideas, fallbackPool[i%len(fallbackPool)])
	}
	return ideas[:n]
}

// shuffle permutes items in place with a Fisher-Yates pass: for index i from
// last to first, draw uniform j in [0,i] and swap.
func (g *Generator) shuffle(items []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(items) - 1; i > 0; i-- {
		j := g.rng.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

func (g *Generator) shuffledCopy(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	g.shuffle(out)
	return out
}
