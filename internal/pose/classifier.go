package pose

import (
	_ "embed"
	"fmt"
	"math"
	"sort"

	"github.com/BurntSushi/toml"
)

//go:embed templates.toml
var defaultTemplates string

// Scoring weights. Curl profile dominates; thumb position separates letters
// with identical curls (I vs Y); spread separates V-shapes from flat hands.
const (
	curlWeight   = 0.6
	thumbWeight  = 0.25
	spreadWeight = 0.15
)

// topKSize is how many alternatives a classification carries.
const topKSize = 3

// Template describes the expected handshape for one static sign.
type Template struct {
	Curls  FingerValues `toml:"curls"`
	Thumb  string       `toml:"thumb"`
	Spread bool         `toml:"spread"`
}

type templatesFile struct {
	Signs map[string]Template `toml:"signs"`
}

// ScoredSign is one (label, confidence) alternative.
type ScoredSign struct {
	Sign       string  `json:"sign"`
	Confidence float64 `json:"confidence"`
}

// Result is the outcome of classifying a single frame. Prediction is empty
// when no hand was usable. Stateless: one Result per frame, no smoothing.
// Features holds the values the scores were computed from, so callers can
// ask for a Hint without re-extracting.
type Result struct {
	Prediction string       `json:"prediction"`
	Confidence float64      `json:"confidence"`
	TopK       []ScoredSign `json:"top_k"`
	Issues     []string     `json:"issues"`
	Features   *Features    `json:"-"`
}

// Classifier scores extracted hand features against per-sign templates.
// Every call is a pure, independent evaluation of one frame; any temporal
// smoothing belongs to the caller.
type Classifier struct {
	templates map[string]Template
	signs     []string
}

// NewClassifier builds a classifier from the embedded templates. If path is
// non-empty it is decoded instead, letting deployments tune handshapes
// without a rebuild.
func NewClassifier(path string) (*Classifier, error) {
	var file templatesFile
	if path != "" {
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("failed to decode sign templates: %w", err)
		}
	} else {
		if _, err := toml.Decode(defaultTemplates, &file); err != nil {
			return nil, fmt.Errorf("failed to decode embedded sign templates: %w", err)
		}
	}

	if len(file.Signs) == 0 {
		return nil, fmt.Errorf("sign templates are empty")
	}

	signs := make([]string, 0, len(file.Signs))
	for sign := range file.Signs {
		signs = append(signs, sign)
	}
	sort.Strings(signs)

	return &Classifier{templates: file.Signs, signs: signs}, nil
}

// Signs returns the labels this classifier can produce, sorted.
func (c *Classifier) Signs() []string {
	out := make([]string, len(c.signs))
	copy(out, c.signs)
	return out
}

// Template returns the handshape template for a sign.
func (c *Classifier) Template(sign string) (Template, bool) {
	t, ok := c.templates[sign]
	return t, ok
}

// Classify scores one frame against every template. Frames without exactly
// 21 landmarks yield an empty prediction with a "No hand detected" issue.
// Client-supplied features are trusted when present, otherwise extracted
// here.
func (c *Classifier) Classify(frame Frame) Result {
	if len(frame.Landmarks) != landmarkCount {
		return Result{
			Confidence: 0,
			TopK:       []ScoredSign{},
			Issues:     []string{"No hand detected"},
		}
	}

	features := frame.Features
	if features == nil {
		features = ExtractFeatures(frame.Landmarks)
	}

	scored := make([]ScoredSign, 0, len(c.signs))
	for _, sign := range c.signs {
		scored = append(scored, ScoredSign{
			Sign:       sign,
			Confidence: scoreTemplate(features, c.templates[sign]),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Confidence > scored[j].Confidence
	})

	k := topKSize
	if k > len(scored) {
		k = len(scored)
	}

	return Result{
		Prediction: scored[0].Sign,
		Confidence: round3(scored[0].Confidence),
		TopK:       scored[:k],
		Issues:     []string{},
		Features:   features,
	}
}

// scoreTemplate computes similarity in [0,1] between observed features and a
// template.
func scoreTemplate(f *Features, t Template) float64 {
	curlMatch := 1 - avgCurlDiff(f.FingerCurls, t.Curls)

	thumbMatch := 0.0
	if f.ThumbPosition == t.Thumb {
		thumbMatch = 1
	}

	spreadMatch := 0.0
	if f.FingersSpread == t.Spread {
		spreadMatch = 1
	}

	return clamp01(curlWeight*curlMatch + thumbWeight*thumbMatch + spreadWeight*spreadMatch)
}

func avgCurlDiff(a, b FingerValues) float64 {
	sum := math.Abs(a.Thumb-b.Thumb) +
		math.Abs(a.Index-b.Index) +
		math.Abs(a.Middle-b.Middle) +
		math.Abs(a.Ring-b.Ring) +
		math.Abs(a.Pinky-b.Pinky)
	return sum / 5
}

// Hint names the largest deviation between observed features and the target
// sign's template, for on-screen coaching. Empty when the hand is close
// enough that no single correction stands out.
func (c *Classifier) Hint(features *Features, target string) string {
	t, ok := c.templates[target]
	if !ok || features == nil {
		return ""
	}

	if features.ThumbPosition != t.Thumb {
		switch t.Thumb {
		case ThumbExtended:
			return "Stick your thumb out to the side"
		case ThumbAcross:
			return "Lay your thumb across your fingers"
		case ThumbTucked:
			return "Tuck your thumb against your palm"
		}
	}

	if features.FingersSpread != t.Spread {
		if t.Spread {
			return "Spread your fingers apart"
		}
		return "Keep your fingers together"
	}

	name, diff := worstCurl(features.FingerCurls, t.Curls)
	if diff > 0.3 {
		label := name + " finger"
		if name == "thumb" {
			label = "thumb"
		}
		if curlValue(features.FingerCurls, name) < curlValue(t.Curls, name) {
			return fmt.Sprintf("Curl your %s more", label)
		}
		return fmt.Sprintf("Straighten your %s", label)
	}
	return ""
}

func worstCurl(a, b FingerValues) (string, float64) {
	fingers := []string{"thumb", "index", "middle", "ring", "pinky"}
	worst, worstDiff := "", 0.0
	for _, f := range fingers {
		d := math.Abs(curlValue(a, f) - curlValue(b, f))
		if d > worstDiff {
			worst, worstDiff = f, d
		}
	}
	return worst, worstDiff
}

func curlValue(v FingerValues, finger string) float64 {
	switch finger {
	case "thumb":
		return v.Thumb
	case "index":
		return v.Index
	case "middle":
		return v.Middle
	case "ring":
		return v.Ring
	case "pinky":
		return v.Pinky
	}
	return 0
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
