package domain

import "github.com/oklog/ulid/v2"

// CandidateStructure is a core entity describing one sandwich structure
// proposed by the identification step. Immutable once created.
type CandidateStructure struct {
	BreadTop      string
	BreadBottom   string
	Filling       string
	StructureType string
	Confidence    float64
	Rationale     string
}

// SelectedCandidate wraps the winning candidate with its scoring breakdown.
type SelectedCandidate struct {
	Candidate      CandidateStructure
	FinalScore     float64
	NoveltyBonus   float64
	DiversityBonus float64
	Rationale      string
}

// SourceResult is the raw material returned by a content source fetch.
type SourceResult struct {
	Content     string
	URL         string
	Title       string
	ContentType string
	Metadata    map[string]string
}

// ForagingResult couples a source result with the source and prompt that produced it.
type ForagingResult struct {
	SourceResult    SourceResult
	SourceName      string
	CuriosityPrompt string
	LogID           ulid.ULID
}

// ValidationVerdict enumerates validation outcomes for an assembled sandwich.
type ValidationVerdict string

const (
	VerdictAccepted ValidationVerdict = "accepted"
	VerdictReview   ValidationVerdict = "review"
	VerdictRejected ValidationVerdict = "rejected"
)

// AssembledSandwich is the artifact produced from a selected candidate.
type AssembledSandwich struct {
	Name          string
	BreadTop      string
	BreadBottom   string
	Filling       string
	StructureType string
	Description   string
}

// ValidationReport captures the validation step's judgement of an assembly.
type ValidationReport struct {
	Verdict      ValidationVerdict
	OverallScore float64
	Notes        string
}
