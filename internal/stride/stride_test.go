package stride

import (
	"math"
	"strings"
	"testing"

	"github.com/certnode/certnode/internal/cdp"
)

func paras(contents ...string) cdp.Result {
	res := cdp.Result{}
	for _, c := range contents {
		res.Paragraphs = append(res.Paragraphs, cdp.Paragraph{Content: c})
	}
	return res
}

func TestNeutralContentNeedsNoSuppression(t *testing.T) {
	d := NewDetector(DefaultRuleset())
	res := d.Detect(paras(
		"The corrected series tracks the reference instrument, and the residuals stay within the noise floor.",
		"The offset table compensates for housing temperature, so each reading keeps a stable baseline.",
	))
	if res.SuppressionNeeded {
		t.Error("neutral prose should not need suppression")
	}
	if res.Drift.Severity != 0 {
		t.Errorf("severity = %v, want 0", res.Drift.Severity)
	}
	if res.Tone.ToneNeutrality != 1 {
		t.Errorf("neutrality = %v, want 1", res.Tone.ToneNeutrality)
	}
}

func TestRhetoricalDriftDetected(t *testing.T) {
	d := NewDetector(DefaultRuleset())
	res := d.Detect(paras("This amazing and incredible result is stunning."))
	if !res.Drift.RhetoricalDrift {
		t.Fatal("three rhetorical markers in one paragraph should trip rhetorical drift")
	}
	found := false
	for _, m := range res.Drift.Markers {
		if m == "excessive_rhetorical_language" {
			found = true
		}
	}
	if !found {
		t.Errorf("drift markers = %v, missing excessive_rhetorical_language", res.Drift.Markers)
	}
}

func TestSuppressionTriggers(t *testing.T) {
	d := NewDetector(DefaultRuleset())
	res := d.Detect(paras(
		"This amazing and incredible discovery is shocking and terrible, a devastating turn. " +
			"You must act, you should act, and you need to act now.",
	))
	if !res.SuppressionNeeded {
		t.Fatal("heavy rhetoric plus persuasion should need suppression")
	}
	if res.Tone.PersuasionIntensity <= 0.5 {
		t.Errorf("persuasion intensity = %v, want > 0.5", res.Tone.PersuasionIntensity)
	}
	if res.Drift.Severity <= 0.4 {
		t.Errorf("drift severity = %v, want > 0.4", res.Drift.Severity)
	}
	joined := strings.Join(res.Recommendations, "; ")
	if !strings.Contains(joined, "Replace emotional language with objective descriptions") {
		t.Errorf("recommendations = %v, missing emotional-language remediation", res.Recommendations)
	}
	if res.SuppressionScore <= 0 || res.SuppressionScore > 1 {
		t.Errorf("suppression score = %v, want in (0, 1]", res.SuppressionScore)
	}
}

func TestRepeatedStarters(t *testing.T) {
	got := repeatedStarters([]string{"The system runs", "The system stops", "The system fails"})
	if len(got) != 1 || got[0] != "repeated_starter: the system" {
		t.Errorf("repeatedStarters = %v", got)
	}
	if out := repeatedStarters([]string{"The system runs", "A fault occurs"}); out != nil {
		t.Errorf("two varied sentences should not flag, got %v", out)
	}
}

func TestAlliteration(t *testing.T) {
	got := alliteration([]string{"Seven silver ships sailed east"})
	if len(got) != 1 || got[0] != "alliteration_detected: s" {
		t.Errorf("alliteration = %v", got)
	}
	if out := alliteration([]string{"The fault occurs rarely now"}); len(out) != 0 {
		t.Errorf("no alliteration expected, got %v", out)
	}
}

func TestSentenceVariation(t *testing.T) {
	if v := sentenceVariation([]int{10, 10, 10}); v != 0 {
		t.Errorf("uniform lengths variation = %v, want 0", v)
	}
	if v := sentenceVariation([]int{10}); v != 0 {
		t.Errorf("single sentence variation = %v, want 0", v)
	}
	v := sentenceVariation([]int{2, 40, 3, 38})
	if v <= 0 || v > 1 || math.IsNaN(v) {
		t.Errorf("erratic lengths variation = %v, want in (0, 1]", v)
	}
}
