// Package stride detects rhetorical, emotional, and stylistic drift away from
// neutral, fact-focused prose in analyzed content.
package stride

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/certnode/certnode/internal/cdp"
)

// Ruleset holds the five drift marker tables. Immutable after construction.
type Ruleset struct {
	Rhetorical         []string
	Emotional          []string
	Persuasive         []string
	Stylistic          []string
	RhythmIntensifiers []string
}

func DefaultRuleset() Ruleset {
	return Ruleset{
		Rhetorical: []string{
			"magnificent", "incredible", "amazing", "stunning", "remarkable",
			"extraordinary", "phenomenal", "fantastic", "brilliant", "spectacular",
			"obviously", "clearly", "undoubtedly", "certainly", "absolutely",
		},
		Emotional: []string{
			"devastating", "heartbreaking", "thrilling", "exciting", "shocking",
			"alarming", "disturbing", "inspiring", "uplifting", "depressing",
			"frustrating", "infuriating", "delightful", "wonderful", "terrible",
		},
		Persuasive: []string{
			"you must", "you should", "you need to", "you have to",
			"we must", "we should", "we need to", "it's essential",
			"it's crucial", "it's vital", "it's imperative", "don't forget",
		},
		Stylistic: []string{
			"imagine", "picture this", "let me tell you", "here's the thing",
			"the bottom line", "at the end of the day", "when all is said and done",
			"truth be told", "to be honest", "frankly speaking",
		},
		RhythmIntensifiers: []string{
			"again and again", "over and over", "time and time again",
			"more and more", "bigger and bigger", "faster and faster",
			"round and round", "up and down", "back and forth",
		},
	}
}

type ToneAnalysis struct {
	ToneNeutrality      float64  `json:"tone_neutrality"`
	EmotionalMarkers    []string `json:"emotional_markers"`
	PersuasionIntensity float64  `json:"persuasion_intensity"`
	ObjectivityScore    float64  `json:"objectivity_score"`
}

type RhythmAnalysis struct {
	Detected          bool     `json:"rhythm_detected"`
	Score             float64  `json:"rhythm_score"`
	Patterns          []string `json:"rhythm_patterns"`
	SentenceVariation float64  `json:"sentence_variation"`
}

type DriftDetection struct {
	RhetoricalDrift bool     `json:"rhetorical_drift"`
	StyleDrift      bool     `json:"style_drift"`
	EmotionalDrift  bool     `json:"emotional_drift"`
	Severity        float64  `json:"drift_severity"`
	Markers         []string `json:"drift_markers"`
}

type Result struct {
	Tone              ToneAnalysis   `json:"tone_analysis"`
	Rhythm            RhythmAnalysis `json:"rhythm_analysis"`
	Drift             DriftDetection `json:"drift_detection"`
	SuppressionNeeded bool           `json:"suppression_needed"`
	SuppressionScore  float64        `json:"suppression_score"`
	Recommendations   []string       `json:"recommendations"`
}

// Detector scores tone and rhythm deviation. Safe for concurrent use.
type Detector struct {
	rules Ruleset
}

func NewDetector(rules Ruleset) *Detector {
	return &Detector{rules: rules}
}

// Detect runs tone, rhythm, and drift analysis over CDP paragraphs.
func (d *Detector) Detect(res cdp.Result) Result {
	tone := d.analyzeTone(res.Paragraphs)
	rhythm := d.analyzeRhythm(res.Paragraphs)
	drift := d.detectDrift(res.Paragraphs, tone, rhythm)

	triggers := 0
	for _, t := range []bool{
		tone.ToneNeutrality < 0.6,
		rhythm.Detected,
		drift.Severity > 0.4,
		tone.PersuasionIntensity > 0.5,
	} {
		if t {
			triggers++
		}
	}

	suppression := 0.3*(1-tone.ToneNeutrality) + 0.2*rhythm.Score +
		0.3*drift.Severity + 0.2*tone.PersuasionIntensity

	return Result{
		Tone:              tone,
		Rhythm:            rhythm,
		Drift:             drift,
		SuppressionNeeded: triggers >= 2,
		SuppressionScore:  suppression,
		Recommendations:   d.recommendations(tone, rhythm, drift),
	}
}

func (d *Detector) analyzeTone(paragraphs []cdp.Paragraph) ToneAnalysis {
	var emotional []string
	var persuasionSum, objectivitySum float64

	subjective := make([]string, 0, len(d.rules.Rhetorical)+len(d.rules.Stylistic))
	subjective = append(subjective, d.rules.Rhetorical...)
	subjective = append(subjective, d.rules.Stylistic...)

	for _, p := range paragraphs {
		lower := strings.ToLower(p.Content)

		for _, m := range d.rules.Emotional {
			if strings.Contains(lower, m) {
				emotional = append(emotional, m)
			}
		}

		persuasion := float64(countPresent(lower, d.rules.Persuasive)) / 5
		if persuasion > 1 {
			persuasion = 1
		}
		persuasionSum += persuasion

		objectivity := 1 - float64(countPresent(lower, subjective))/10
		if objectivity < 0 {
			objectivity = 0
		}
		objectivitySum += objectivity
	}

	var neutrality, persuasion float64
	if n := len(paragraphs); n > 0 {
		neutrality = objectivitySum / float64(n)
		persuasion = persuasionSum / float64(n)
	}

	return ToneAnalysis{
		ToneNeutrality:      neutrality,
		EmotionalMarkers:    emotional,
		PersuasionIntensity: persuasion,
		ObjectivityScore:    neutrality,
	}
}

func (d *Detector) analyzeRhythm(paragraphs []cdp.Paragraph) RhythmAnalysis {
	var patterns []string
	var sentenceLengths []int

	for _, p := range paragraphs {
		sentences := cdp.SplitSentences(p.Content)
		for _, s := range sentences {
			sentenceLengths = append(sentenceLengths, len(strings.Fields(s)))
		}

		lower := strings.ToLower(p.Content)
		for _, m := range d.rules.RhythmIntensifiers {
			if strings.Contains(lower, m) {
				patterns = append(patterns, m)
			}
		}

		patterns = append(patterns, repeatedStarters(sentences)...)
		patterns = append(patterns, alliteration(sentences)...)
	}

	score := float64(len(patterns)) / 10
	if score > 1 {
		score = 1
	}

	return RhythmAnalysis{
		Detected:          score > 0.3,
		Score:             score,
		Patterns:          patterns,
		SentenceVariation: sentenceVariation(sentenceLengths),
	}
}

// repeatedStarters flags any two-word opener shared by more than two
// sentences within the paragraph.
func repeatedStarters(sentences []string) []string {
	if len(sentences) < 2 {
		return nil
	}
	counts := make(map[string]int)
	var order []string
	for _, s := range sentences {
		words := strings.Fields(s)
		if len(words) < 2 {
			continue
		}
		starter := strings.ToLower(words[0] + " " + words[1])
		if counts[starter] == 0 {
			order = append(order, starter)
		}
		counts[starter]++
	}
	var out []string
	for _, starter := range order {
		if counts[starter] > 2 {
			out = append(out, "repeated_starter: "+starter)
		}
	}
	return out
}

// alliteration flags three consecutive words sharing an initial letter;
// at most one hit per sentence.
func alliteration(sentences []string) []string {
	var out []string
	for _, s := range sentences {
		words := strings.Fields(strings.ToLower(s))
		if len(words) < 3 {
			continue
		}
		var initials []rune
		for _, w := range words {
			if isAlpha(w) {
				initials = append(initials, []rune(w)[0])
			}
		}
		for i := 0; i+2 < len(initials); i++ {
			if initials[i] == initials[i+1] && initials[i] == initials[i+2] {
				out = append(out, fmt.Sprintf("alliteration_detected: %c", initials[i]))
				break
			}
		}
	}
	return out
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// sentenceVariation is the coefficient of variation of sentence lengths,
// capped at 1. Reported only; it does not gate.
func sentenceVariation(lengths []int) float64 {
	if len(lengths) < 2 {
		return 0
	}
	var sum float64
	for _, l := range lengths {
		sum += float64(l)
	}
	mean := sum / float64(len(lengths))
	if mean == 0 {
		return 0
	}
	var sq float64
	for _, l := range lengths {
		d := float64(l) - mean
		sq += d * d
	}
	stdev := math.Sqrt(sq / float64(len(lengths)-1))
	cv := stdev / mean
	if cv > 1 {
		cv = 1
	}
	return cv
}

func (d *Detector) detectDrift(paragraphs []cdp.Paragraph, tone ToneAnalysis, rhythm RhythmAnalysis) DriftDetection {
	var markers []string
	rhetoricalCount, styleCount := 0, 0
	for _, p := range paragraphs {
		lower := strings.ToLower(p.Content)
		rhetoricalCount += countPresent(lower, d.rules.Rhetorical)
		styleCount += countPresent(lower, d.rules.Stylistic)
	}

	n := len(paragraphs)
	rhetoricalDrift := rhetoricalCount > n
	if rhetoricalDrift {
		markers = append(markers, "excessive_rhetorical_language")
	}
	styleDrift := float64(styleCount) > float64(n)*0.5
	if styleDrift {
		markers = append(markers, "stylistic_language_detected")
	}
	emotionalDrift := len(tone.EmotionalMarkers) > n
	if emotionalDrift {
		markers = append(markers, "emotional_language_excessive")
	}

	flags := 0
	for _, f := range []bool{
		rhetoricalDrift, styleDrift, emotionalDrift,
		rhythm.Detected, tone.PersuasionIntensity > 0.5,
	} {
		if f {
			flags++
		}
	}

	return DriftDetection{
		RhetoricalDrift: rhetoricalDrift,
		StyleDrift:      styleDrift,
		EmotionalDrift:  emotionalDrift,
		Severity:        float64(flags) / 5,
		Markers:         markers,
	}
}

// recommendations mirrors the triggered flags into fixed remediation strings,
// de-duplicated in first-trigger order so output is deterministic.
func (d *Detector) recommendations(tone ToneAnalysis, rhythm RhythmAnalysis, drift DriftDetection) []string {
	var recs []string

	if tone.ToneNeutrality < 0.6 {
		recs = append(recs, "Increase tone neutrality by removing subjective language")
	}
	if len(tone.EmotionalMarkers) > 0 {
		recs = append(recs, "Replace emotional language with objective descriptions")
	}
	if tone.PersuasionIntensity > 0.5 {
		recs = append(recs, "Reduce persuasive language in favor of informational presentation")
	}
	if rhythm.Detected {
		recs = append(recs, "Eliminate rhythmic patterns that prioritize sound over logic")
	}
	if rhythm.SentenceVariation > 0.7 {
		recs = append(recs, "Standardize sentence structure for logical consistency")
	}
	if drift.RhetoricalDrift {
		recs = append(recs, "Remove rhetorical embellishments and focus on logical content")
	}
	if drift.StyleDrift {
		recs = append(recs, "Eliminate stylistic devices that distract from logical flow")
	}
	if drift.EmotionalDrift {
		recs = append(recs, "Replace emotional appeals with factual presentation")
	}
	for _, m := range drift.Markers {
		switch {
		case strings.Contains(m, "rhetorical"):
			recs = append(recs, "Reduce use of rhetorical intensifiers")
		case strings.Contains(m, "stylistic"):
			recs = append(recs, "Remove conversational and stylistic elements")
		case strings.Contains(m, "emotional"):
			recs = append(recs, "Maintain emotional neutrality in presentation")
		}
	}

	seen := make(map[string]struct{}, len(recs))
	var out []string
	for _, r := range recs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func countPresent(lower string, markers []string) int {
	n := 0
	for _, m := range markers {
		if strings.Contains(lower, m) {
			n++
		}
	}
	return n
}
