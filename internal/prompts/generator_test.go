package prompts

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"testing"

	"server/internal/providers/vision"
)

type fakeSource struct {
	ideas    func(context.Context, []byte, int) ([]string, error)
	classify func(context.Context, []byte) (vision.Pronoun, error)
	creds    bool
}

func (f fakeSource) GenerateIdeas(ctx context.Context, image []byte, n int) ([]string, error) {
	if f.ideas != nil {
		return f.ideas(ctx, image, n)
	}
	return nil, errors.New("ideas not implemented")
}

func (f fakeSource) ClassifySubject(ctx context.Context, image []byte) (vision.Pronoun, error) {
	if f.classify != nil {
		return f.classify(ctx, image)
	}
	return vision.PronounThey, errors.New("classify not implemented")
}

func (f fakeSource) HasCredentials() bool {
	return f.creds
}

func seededRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestBatchExactCountWithDynamicSource(t *testing.T) {
	source := fakeSource{
		creds: true,
		ideas: func(ctx context.Context, image []byte, n int) ([]string, error) {
			out := make([]string, n)
			for i := range out {
				out[i] = "Generated instruction"
			}
			return out, nil
		},
	}
	gen := NewGenerator(Options{Source: source, StaticCount: 3, Rand: seededRand()})

	batch := gen.Batch(context.Background(), []byte("img"), 8)
	if len(batch) != 8 {
		t.Fatalf("len(batch) = %d, want 8", len(batch))
	}
	for i, p := range batch {
		if p == "" {
			t.Fatalf("batch[%d] is empty", i)
		}
	}
	generated := 0
	for _, p := range batch {
		if p == "Generated instruction" {
			generated++
		}
	}
	if generated != 5 {
		t.Fatalf("generated entries = %d, want 5", generated)
	}
}

func TestBatchAbsorbsSourceFailure(t *testing.T) {
	source := fakeSource{
		creds: true,
		ideas: func(ctx context.Context, image []byte, n int) ([]string, error) {
			return nil, errors.New("provider down")
		},
	}
	gen := NewGenerator(Options{Source: source, StaticCount: 3, Rand: seededRand()})

	batch := gen.Batch(context.Background(), []byte("img"), 8)
	if len(batch) != 8 {
		t.Fatalf("len(batch) = %d, want 8", len(batch))
	}
	for i, p := range batch {
		if p == "" {
			t.Fatalf("batch[%d] is empty", i)
		}
	}
}

func TestBatchPadsShortDynamicResponse(t *testing.T) {
	source := fakeSource{
		creds: true,
		ideas: func(ctx context.Context, image []byte, n int) ([]string, error) {
			return []string{"Only one idea"}, nil
		},
	}
	gen := NewGenerator(Options{Source: source, StaticCount: 3, Rand: seededRand()})

	batch := gen.Batch(context.Background(), []byte("img"), 8)
	if len(batch) != 8 {
		t.Fatalf("len(batch) = %d, want 8", len(batch))
	}
	fromFallback := 0
	for _, p := range batch {
		for _, f := range fallbackPool {
			if p == f {
				fromFallback++
				break
			}
		}
	}
	if fromFallback != 4 {
		t.Fatalf("fallback entries = %d, want 4", fromFallback)
	}
}

func TestBatchStaticOnlyWithoutCredentials(t *testing.T) {
	gen := NewGenerator(Options{Source: fakeSource{creds: false}, StaticCount: 3, Rand: seededRand()})

	batch := gen.Batch(context.Background(), []byte("img"), 8)
	if len(batch) != 8 {
		t.Fatalf("len(batch) = %d, want 8", len(batch))
	}
	pool := make(map[string]struct{}, len(characterPool)+len(diversePool))
	for _, p := range characterPool {
		pool[p] = struct{}{}
	}
	for _, p := range diversePool {
		pool[p] = struct{}{}
	}
	for i, p := range batch {
		if _, ok := pool[p]; !ok {
			t.Fatalf("batch[%d] not from static pools: %q", i, p)
		}
	}
}

func TestShuffleProducesPermutation(t *testing.T) {
	gen := NewGenerator(Options{Rand: seededRand()})
	original := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	for trial := 0; trial < 100; trial++ {
		shuffled := gen.shuffledCopy(original)
		if len(shuffled) != len(original) {
			t.Fatalf("length changed: %d", len(shuffled))
		}
		a := append([]string(nil), original...)
		b := append([]string(nil), shuffled...)
		sort.Strings(a)
		sort.Strings(b)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("trial %d: not a permutation: %v", trial, shuffled)
			}
		}
	}
}

func TestShuffleIsRoughlyUniform(t *testing.T) {
	gen := NewGenerator(Options{Rand: seededRand()})
	items := []string{"a", "b", "c"}

	const trials = 6000
	counts := make(map[string]int, 3)
	for i := 0; i < trials; i++ {
		counts[gen.shuffledCopy(items)[0]]++
	}
	// Each element should land in the first slot about trials/3 times.
	// A 10% band is far looser than the binomial standard deviation allows
	// to fail with a fixed seed.
	expected := trials / 3
	for _, item := range items {
		got := counts[item]
		if got < expected*9/10 || got > expected*11/10 {
			t.Fatalf("first-slot count for %q = %d, want about %d", item, got, expected)
		}
	}
}

func TestSubjectAbsorbsClassificationFailure(t *testing.T) {
	source := fakeSource{
		creds: true,
		classify: func(ctx context.Context, image []byte) (vision.Pronoun, error) {
			return vision.PronounThey, errors.New("provider down")
		},
	}
	gen := NewGenerator(Options{Source: source, Rand: seededRand()})

	if got := gen.Subject(context.Background(), []byte("img")); got != vision.PronounThey {
		t.Fatalf("Subject = %q, want %q", got, vision.PronounThey)
	}
}

func TestSubjectPassesThroughClassification(t *testing.T) {
	source := fakeSource{
		creds: true,
		classify: func(ctx context.Context, image []byte) (vision.Pronoun, error) {
			return vision.PronounIt, nil
		},
	}
	gen := NewGenerator(Options{Source: source, Rand: seededRand()})

	if got := gen.Subject(context.Background(), []byte("img")); got != vision.PronounIt {
		t.Fatalf("Subject = %q, want %q", got, vision.PronounIt)
	}
}
