package pose

import (
	"math"
	"math/rand"
	"testing"
)

// openHand builds a flat hand with every finger straight: wrist at the
// bottom, fingers pointing up in separate columns, all at z=0.
func openHand() []Landmark {
	lm := make([]Landmark, landmarkCount)
	lm[wrist] = Landmark{X: 0.5, Y: 0.9}

	// Thumb angles off to the side in a straight line.
	lm[thumbCMC] = Landmark{X: 0.40, Y: 0.82}
	lm[thumbMCP] = Landmark{X: 0.36, Y: 0.76}
	lm[thumbIP] = Landmark{X: 0.32, Y: 0.70}
	lm[thumbTip] = Landmark{X: 0.28, Y: 0.64}

	columns := []struct {
		mcp      int
		x, baseY float64
		segment  float64
	}{
		{indexMCP, 0.42, 0.62, 0.09},
		{middleMCP, 0.48, 0.60, 0.10},
		{ringMCP, 0.54, 0.62, 0.09},
		{pinkyMCP, 0.60, 0.66, 0.07},
	}
	for _, c := range columns {
		for joint := 0; joint < 4; joint++ {
			lm[c.mcp+joint] = Landmark{X: c.x, Y: c.baseY - float64(joint)*c.segment}
		}
	}
	return lm
}

// fist folds every finger back on itself so both middle joints read as
// fully bent.
func fist() []Landmark {
	lm := make([]Landmark, landmarkCount)
	lm[wrist] = Landmark{X: 0.5, Y: 0.9}

	lm[thumbCMC] = Landmark{X: 0.42, Y: 0.80}
	lm[thumbMCP] = Landmark{X: 0.40, Y: 0.72}
	lm[thumbIP] = Landmark{X: 0.41, Y: 0.78}
	lm[thumbTip] = Landmark{X: 0.40, Y: 0.73}

	columns := []struct {
		mcp int
		x   float64
	}{
		{indexMCP, 0.44},
		{middleMCP, 0.48},
		{ringMCP, 0.52},
		{pinkyMCP, 0.56},
	}
	for _, c := range columns {
		// mcp, then pip above, dip folded back down, tip tucked under.
		lm[c.mcp+0] = Landmark{X: c.x, Y: 0.64}
		lm[c.mcp+1] = Landmark{X: c.x, Y: 0.56}
		lm[c.mcp+2] = Landmark{X: c.x, Y: 0.62}
		lm[c.mcp+3] = Landmark{X: c.x, Y: 0.57}
	}
	return lm
}

func withZ(lm []Landmark, z float64) []Landmark {
	out := make([]Landmark, len(lm))
	for i, p := range lm {
		p.Z = z
		out[i] = p
	}
	return out
}

func TestExtractFeaturesRequiresExactly21Points(t *testing.T) {
	tests := []struct {
		name  string
		count int
	}{
		{"empty", 0},
		{"too few", 20},
		{"too many", 22},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lm := make([]Landmark, tt.count)
			if got := ExtractFeatures(lm); got != nil {
				t.Errorf("ExtractFeatures(%d points) = %+v, want nil", tt.count, got)
			}
		})
	}

	if got := ExtractFeatures(openHand()); got == nil {
		t.Error("ExtractFeatures(21 points) = nil, want features")
	}
}

func TestOpenHandCurlsNearZero(t *testing.T) {
	f := ExtractFeatures(openHand())
	if f == nil {
		t.Fatal("expected features for open hand")
	}

	curls := map[string]float64{
		"thumb":  f.FingerCurls.Thumb,
		"index":  f.FingerCurls.Index,
		"middle": f.FingerCurls.Middle,
		"ring":   f.FingerCurls.Ring,
		"pinky":  f.FingerCurls.Pinky,
	}
	for finger, curl := range curls {
		if curl > 0.15 {
			t.Errorf("%s curl = %.3f, want near 0 for a straight finger", finger, curl)
		}
	}
}

func TestFistCurlsNearOne(t *testing.T) {
	f := ExtractFeatures(fist())
	if f == nil {
		t.Fatal("expected features for fist")
	}

	curls := map[string]float64{
		"index":  f.FingerCurls.Index,
		"middle": f.FingerCurls.Middle,
		"ring":   f.FingerCurls.Ring,
		"pinky":  f.FingerCurls.Pinky,
	}
	for finger, curl := range curls {
		if curl < 0.8 {
			t.Errorf("%s curl = %.3f, want near 1 for a folded finger", finger, curl)
		}
	}
}

func TestPalmFacing(t *testing.T) {
	tests := []struct {
		name string
		z    float64
		want string
	}{
		{"toward camera", -0.2, PalmCamera},
		{"away from camera", 0.2, PalmAway},
		{"edge on", 0.0, PalmSide},
		{"slightly negative stays side", -0.03, PalmSide},
		{"slightly positive stays side", 0.03, PalmSide},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ExtractFeatures(withZ(openHand(), tt.z))
			if f == nil {
				t.Fatal("expected features")
			}
			if f.PalmFacing != tt.want {
				t.Errorf("palm facing = %q, want %q", f.PalmFacing, tt.want)
			}
		})
	}
}

// Curl and spread values must stay inside [0,1] for arbitrary geometry, not
// just plausible hands.
func TestDerivedValuesStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		lm := make([]Landmark, landmarkCount)
		for j := range lm {
			lm[j] = Landmark{
				X: rng.Float64(),
				Y: rng.Float64(),
				Z: rng.Float64()*0.4 - 0.2,
			}
		}

		f := ExtractFeatures(lm)
		if f == nil {
			t.Fatal("expected features for 21 random points")
		}

		values := []float64{
			f.FingerCurls.Thumb, f.FingerCurls.Index, f.FingerCurls.Middle,
			f.FingerCurls.Ring, f.FingerCurls.Pinky,
			f.FingerSpread.ThumbIndex, f.FingerSpread.IndexMiddle,
			f.FingerSpread.MiddleRing, f.FingerSpread.RingPinky,
		}
		for _, v := range values {
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Fatalf("frame %d: derived value %.4f out of [0,1]", i, v)
			}
		}
	}
}

func TestExtractFeaturesIsDeterministic(t *testing.T) {
	lm := openHand()
	a := ExtractFeatures(lm)
	b := ExtractFeatures(lm)
	if a == nil || b == nil {
		t.Fatal("expected features")
	}
	if *a != *b {
		t.Errorf("two extractions of the same frame differ: %+v vs %+v", a, b)
	}
}

func TestAngleStraightAndFolded(t *testing.T) {
	a := Landmark{X: 0, Y: 0}
	b := Landmark{X: 1, Y: 0}
	c := Landmark{X: 2, Y: 0}

	if got := angle(a, b, c); math.Abs(got-math.Pi) > 1e-9 {
		t.Errorf("collinear angle = %.4f, want pi", got)
	}

	d := Landmark{X: 0, Y: 0.001}
	if got := angle(a, b, d); got > 0.01 {
		t.Errorf("folded-back angle = %.4f, want near 0", got)
	}
}
