package cdp

import (
	"math"
	"testing"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First sentence. Second sentence! Is this the third? Yes.")
	if len(got) != 4 {
		t.Fatalf("expected 4 sentences, got %d: %v", len(got), got)
	}
	if got[0] != "First sentence" {
		t.Errorf("unexpected first sentence: %q", got[0])
	}
}

func TestAnalyzeFiltersShortParagraphs(t *testing.T) {
	rules := DefaultRuleset()
	rules.MinParagraphWords = 5
	a := NewAnalyzer(rules)

	content := "Too short here.\n\nThis second paragraph contains well over five words in total for sure."
	res := a.Analyze(content)
	if len(res.Paragraphs) != 1 {
		t.Fatalf("expected 1 surviving paragraph, got %d", len(res.Paragraphs))
	}
	if res.TotalWords != res.Paragraphs[0].WordCount {
		t.Errorf("total words %d != paragraph words %d", res.TotalWords, res.Paragraphs[0].WordCount)
	}
}

func TestDetectSlope(t *testing.T) {
	a := NewAnalyzer(DefaultRuleset())
	tests := []struct {
		lower string
		want  Slope
	}{
		{"how to calibrate: first check the offset, then record the result", SlopeInstructional},
		{"compared to the old sensor, however, the new one is unlike its predecessor", SlopeComparative},
		{"because the seal failed, the leak was caused by stress and leads to corrosion", SlopeDiagnostic},
		{"no classification markers appear in this text at all", SlopeTheoretical},
	}
	for _, tt := range tests {
		if got := a.detectSlope(tt.lower); got != tt.want {
			t.Errorf("detectSlope(%q) = %s, want %s", tt.lower, got, tt.want)
		}
	}
}

func TestDetectAnchor(t *testing.T) {
	a := NewAnalyzer(DefaultRuleset())
	tests := []struct {
		lower string
		want  Anchor
	}{
		{"the study shows improvement and research indicates progress according to the numbers", AnchorPrimarySource},
		{"historically this was traditionally accepted as commonly known", AnchorContextualRecall},
		{"nothing evidential in this sentence", AnchorSyntheticRationale},
	}
	for _, tt := range tests {
		if got := a.detectAnchor(tt.lower); got != tt.want {
			t.Errorf("detectAnchor(%q) = %s, want %s", tt.lower, got, tt.want)
		}
	}
}

func TestResolutionScore(t *testing.T) {
	a := NewAnalyzer(DefaultRuleset())
	tests := []struct {
		name      string
		sentences []string
		want      float64
	}{
		{"strong single marker", []string{"The data was reviewed", "In conclusion the method works"}, 0.8},
		{"strong double marker", []string{"The data was reviewed", "Therefore it holds, thus we proceed"}, 0.9},
		{"weak marker", []string{"The data was reviewed", "However the question remains open"}, 0.2},
		{"neutral ending", []string{"The data was reviewed", "The report ends here"}, 0.5},
		{"single sentence", []string{"Only one sentence"}, 0.5},
	}
	for _, tt := range tests {
		if got := a.resolutionScore(tt.sentences); !almost(got, tt.want) {
			t.Errorf("%s: resolutionScore = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestClauseDensity(t *testing.T) {
	// 2 commas + 1 semicolon + 1 " and " + 1 base = 5 clauses in 1 sentence.
	got := clauseDensity([]string{"alpha, beta, and gamma; delta"})
	if !almost(got, 1.0) {
		t.Errorf("clauseDensity = %v, want 1.0", got)
	}
	if clauseDensity(nil) != 0 {
		t.Error("clauseDensity(nil) should be 0")
	}
}

func TestOverallSlopeFirstParagraphWinsTies(t *testing.T) {
	paragraphs := []Paragraph{
		{Slope: SlopeComparative},
		{Slope: SlopeInstructional},
	}
	if got := overallSlope(paragraphs); got != SlopeComparative {
		t.Errorf("overallSlope tie = %s, want %s", got, SlopeComparative)
	}
}

func TestLogicContinuitySingleParagraph(t *testing.T) {
	if got := logicContinuity([]Paragraph{{LogicWeight: 0.5}}); got != 1 {
		t.Errorf("single-paragraph continuity = %v, want 1", got)
	}
}

func TestConvergenceRequiresTwoParagraphs(t *testing.T) {
	rules := DefaultRuleset()
	rules.MinParagraphWords = 10
	a := NewAnalyzer(rules)

	// One decisive paragraph still cannot converge on its own.
	content := "The corrected series tracks the reference instrument closely, because the offset table " +
		"compensates for temperature, and the residuals suggest a stable baseline. " +
		"Therefore the method holds, thus the result stands."
	res := a.Analyze(content)
	if len(res.Paragraphs) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(res.Paragraphs))
	}
	if res.ConvergenceAchieved {
		t.Error("single paragraph must not achieve convergence")
	}
}
