// Package generate provides next-token sampling for autoregressive byte
// generation.
package generate

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// SamplingConfig configures the sampling strategy for text generation.
type SamplingConfig struct {
	// Temperature controls randomness. 0 = greedy, 1 = normal, >1 = more random.
	Temperature float64 `yaml:"temperature"`

	// TopK limits sampling to top K tokens. 0 = disabled.
	TopK int `yaml:"top_k"`

	// FilterThres keeps the top (1-FilterThres) fraction of the vocabulary,
	// at least one token. 0 = disabled. Ignored when TopK is set.
	FilterThres float64 `yaml:"filter_thres"`

	// TopP (nucleus sampling) limits to tokens with cumulative prob < P. 1.0 = disabled.
	TopP float64 `yaml:"top_p"`

	// RepeatPenalty penalizes tokens seen in the last RepeatWindow tokens.
	// 1.0 = no penalty.
	RepeatPenalty float64 `yaml:"repeat_penalty"`
	RepeatWindow  int     `yaml:"repeat_window"` // 0 = all previous tokens

	// Seed for reproducibility. -1 = random.
	Seed int64 `yaml:"seed"`
}

// DefaultSamplingConfig returns the defaults used for periodic samples:
// temperature 1 with the top 10% of the vocabulary kept.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Temperature:   1.0,
		TopK:          0,
		FilterThres:   0.9,
		TopP:          1.0,
		RepeatPenalty: 1.0,
		RepeatWindow:  64,
		Seed:          -1,
	}
}

// Sampler samples tokens from logits using configurable strategies.
type Sampler struct {
	config SamplingConfig
	rng    *rand.Rand
}

// NewSampler creates a new sampler with the given configuration.
func NewSampler(config SamplingConfig) *Sampler {
	seed := uint64(config.Seed) //nolint:gosec // sign is irrelevant for seeding
	if config.Seed < 0 {
		seed = rand.Uint64()
	}
	return &Sampler{
		config: config,
		rng:    rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15)), //nolint:gosec // sampling is not security-sensitive
	}
}

// Sample returns the next token index from logits.
//
// The sampling process:
//  1. Apply repetition penalty
//  2. Apply temperature scaling (argmax if temperature=0)
//  3. Apply Top-K or threshold filtering
//  4. Apply Top-P (nucleus) filtering
//  5. Sample from the resulting distribution
func (s *Sampler) Sample(logits []float64, previous []byte) int {
	logits = append([]float64(nil), logits...)

	if s.config.RepeatPenalty != 0 && s.config.RepeatPenalty != 1.0 && len(previous) > 0 {
		s.applyRepetitionPenalty(logits, previous)
	}

	if s.config.Temperature == 0 {
		return floats.MaxIdx(logits)
	}
	if s.config.Temperature != 1.0 {
		floats.Scale(1/s.config.Temperature, logits)
	}

	if k := s.topK(len(logits)); k > 0 && k < len(logits) {
		topKFilter(logits, k)
	}

	if s.config.TopP > 0 && s.config.TopP < 1.0 {
		topPFilter(logits, s.config.TopP)
	}

	return s.multinomial(softmax(logits))
}

// topK resolves the effective K from TopK or FilterThres.
func (s *Sampler) topK(vocab int) int {
	if s.config.TopK > 0 {
		return s.config.TopK
	}
	if s.config.FilterThres > 0 && s.config.FilterThres < 1 {
		return max(1, int((1-s.config.FilterThres)*float64(vocab)))
	}
	return 0
}

// applyRepetitionPenalty penalizes tokens that appeared recently.
func (s *Sampler) applyRepetitionPenalty(logits []float64, prev []byte) {
	recent := prev
	if w := s.config.RepeatWindow; w > 0 && len(prev) > w {
		recent = prev[len(prev)-w:]
	}

	var seen [256]bool
	for _, tok := range recent {
		seen[tok] = true
	}

	for tok, ok := range seen {
		if !ok || tok >= len(logits) {
			continue
		}
		if logits[tok] > 0 {
			logits[tok] /= s.config.RepeatPenalty
		} else {
			logits[tok] *= s.config.RepeatPenalty
		}
	}
}

// topKFilter keeps only the k largest logits, sets rest to -inf.
func topKFilter(logits []float64, k int) {
	sorted := append([]float64(nil), logits...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	threshold := sorted[k-1]

	for i := range logits {
		if logits[i] < threshold {
			logits[i] = math.Inf(-1)
		}
	}
}

// topPFilter implements nucleus sampling.
func topPFilter(logits []float64, p float64) {
	probs := softmax(logits)

	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })

	// Always keep the most likely token.
	cum := 0.0
	keep := make([]bool, len(logits))
	for _, i := range idx {
		keep[i] = true
		cum += probs[i]
		if cum > p {
			break
		}
	}

	for i := range logits {
		if !keep[i] {
			logits[i] = math.Inf(-1)
		}
	}
}

// multinomial samples from a categorical distribution.
func (s *Sampler) multinomial(probs []float64) int {
	r := s.rng.Float64()

	cum := 0.0
	for i, p := range probs {
		cum += p
		if r < cum {
			return i
		}
	}

	// Rounding left r above the total; return the last token with mass.
	for i := len(probs) - 1; i >= 0; i-- {
		if probs[i] > 0 {
			return i
		}
	}
	return len(probs) - 1
}

// softmax converts logits to probabilities; -inf entries get zero mass.
func softmax(logits []float64) []float64 {
	maxVal := floats.Max(logits)

	probs := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		if math.IsInf(v, -1) {
			continue
		}
		probs[i] = math.Exp(v - maxVal)
		sum += probs[i]
	}

	if sum > 0 {
		floats.Scale(1/sum, probs)
	}
	return probs
}
