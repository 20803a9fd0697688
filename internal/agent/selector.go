package agent

import (
	"fmt"
	"log/slog"
	"math"

	"SandwichAgent/internal/domain"
)

// SelectionConfig tunes candidate scoring.
type SelectionConfig struct {
	MinConfidence   float64
	NoveltyWeight   float64
	DiversityWeight float64
}

// DefaultSelectionConfig mirrors the production weights.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{MinConfidence: 0.4, NoveltyWeight: 0.3, DiversityWeight: 0.2}
}

// SelectionContext is the optional corpus snapshot feeding novelty and
// diversity scoring. CandidateEmbeddings is parallel to the candidate slice.
type SelectionContext struct {
	CorpusEmbeddings    [][]float32
	CandidateEmbeddings [][]float32
	TypeFrequencies     map[string]float64
}

// SelectCandidate picks the highest-scoring candidate:
//
//	final = confidence + noveltyWeight*novelty + diversityWeight*diversity
//
// Novelty is one minus the maximum cosine similarity to the corpus (1.0 when
// no embeddings are available: an empty corpus makes everything novel).
// Diversity is one minus the candidate type's corpus frequency (1.0 for
// unknown types, which encourages taxonomic expansion). Ties keep the first
// candidate in input order. Returns nil when no candidate clears the
// confidence floor.
func SelectCandidate(candidates []domain.CandidateStructure, sctx SelectionContext, cfg SelectionConfig, logger *slog.Logger) *domain.SelectedCandidate {
	if logger == nil {
		logger = slog.Default()
	}
	if len(candidates) == 0 {
		return nil
	}

	var best *domain.SelectedCandidate
	rejected := 0

	for i, cand := range candidates {
		if cand.Confidence < cfg.MinConfidence {
			rejected++
			continue
		}

		novelty := noveltyBonus(i, sctx)
		diversity := diversityBonus(cand.StructureType, sctx.TypeFrequencies)
		final := cand.Confidence + cfg.NoveltyWeight*novelty + cfg.DiversityWeight*diversity

		rationale := fmt.Sprintf(
			"confidence=%.2f, novelty_bonus=%.2f (w=%g), diversity_bonus=%.2f (w=%g), final=%.3f",
			cand.Confidence, novelty, cfg.NoveltyWeight, diversity, cfg.DiversityWeight, final)

		logger.Debug("scored candidate", "type", cand.StructureType, "rationale", rationale)

		if best == nil || final > best.FinalScore {
			best = &domain.SelectedCandidate{
				Candidate:      cand,
				FinalScore:     final,
				NoveltyBonus:   novelty,
				DiversityBonus: diversity,
				Rationale:      rationale,
			}
		}
	}

	if best == nil {
		logger.Info("no candidate met the confidence floor",
			"rejected", rejected, "min_confidence", cfg.MinConfidence)
		return nil
	}

	logger.Info("selected candidate", "type", best.Candidate.StructureType, "rationale", best.Rationale)
	return best
}

func noveltyBonus(idx int, sctx SelectionContext) float64 {
	if len(sctx.CorpusEmbeddings) == 0 || idx >= len(sctx.CandidateEmbeddings) {
		return 1.0
	}
	candEmb := sctx.CandidateEmbeddings[idx]
	if len(candEmb) == 0 {
		return 1.0
	}

	maxSim := 0.0
	for _, corpusEmb := range sctx.CorpusEmbeddings {
		if sim := cosineSimilarity(candEmb, corpusEmb); sim > maxSim {
			maxSim = sim
		}
	}
	return clamp01(1.0 - maxSim)
}

func diversityBonus(structureType string, frequencies map[string]float64) float64 {
	freq, ok := frequencies[structureType]
	if !ok {
		return 1.0
	}
	return clamp01(1.0 - freq)
}

// cosineSimilarity is the dot product over the product of norms; a zero-norm
// vector yields 0.0 rather than an error.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
