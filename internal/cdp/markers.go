package cdp

// Ruleset is the immutable keyword rubric driving paragraph classification.
// Marker matching is case-insensitive substring presence (a marker counts at
// most once per paragraph, however often it occurs).
type Ruleset struct {
	MinParagraphWords int

	SlopeMarkers  []SlopeMarkers
	AnchorMarkers []AnchorMarkers

	SpiralMarkers []string

	Connectors []string
	Qualifiers []string

	StrongResolution []string
	WeakResolution   []string
}

// SlopeMarkers binds a slope class to its marker list. Order matters:
// classification scans in slice order and keeps the first strict maximum.
type SlopeMarkers struct {
	Slope   Slope
	Markers []string
}

type AnchorMarkers struct {
	Anchor  Anchor
	Markers []string
}

// DefaultRuleset returns the genesis-locked rubric.
func DefaultRuleset() Ruleset {
	return Ruleset{
		MinParagraphWords: 50,
		SlopeMarkers: []SlopeMarkers{
			{SlopeInstructional, []string{"how to", "first", "then", "next", "finally", "step by", "process"}},
			{SlopeComparative, []string{"compared to", "in contrast", "however", "whereas", "unlike", "similar to"}},
			{SlopeTheoretical, []string{"theory", "concept", "principle", "framework", "model", "paradigm"}},
			{SlopePersuasive, []string{"should", "must", "ought", "therefore", "thus", "clearly", "obviously"}},
			{SlopeDiagnostic, []string{"because", "due to", "caused by", "result of", "leads to", "explains why"}},
			{SlopeRecursive, []string{"as mentioned", "as we saw", "returning to", "circle back", "revisiting"}},
		},
		AnchorMarkers: []AnchorMarkers{
			{AnchorPrimarySource, []string{"study shows", "research indicates", "data reveals", "according to"}},
			{AnchorSyntheticRationale, []string{"it follows that", "we can conclude", "this suggests", "reasoning shows"}},
			{AnchorCrossSourcedLogic, []string{"multiple sources", "various studies", "consensus shows", "collectively"}},
			{AnchorContextualRecall, []string{"historically", "traditionally", "commonly known", "established fact"}},
		},
		SpiralMarkers:    []string{"again", "further", "deeper", "more importantly"},
		Connectors:       []string{"therefore", "because", "since", "however", "although", "furthermore"},
		Qualifiers:       []string{"perhaps", "likely", "suggests", "indicates", "appears", "seems"},
		StrongResolution: []string{"therefore", "thus", "consequently", "in conclusion", "ultimately"},
		WeakResolution:   []string{"however", "but", "although", "yet", "still"},
	}
}

// SlopeNames returns the slope vocabulary in classification order.
// Part of the genesis preimage.
func (r Ruleset) SlopeNames() []string {
	out := make([]string, len(r.SlopeMarkers))
	for i, sm := range r.SlopeMarkers {
		out[i] = string(sm.Slope)
	}
	return out
}

// AnchorNames returns the anchor vocabulary in classification order.
func (r Ruleset) AnchorNames() []string {
	out := make([]string, len(r.AnchorMarkers))
	for i, am := range r.AnchorMarkers {
		out[i] = string(am.Anchor)
	}
	return out
}
