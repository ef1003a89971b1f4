package pose

import "math"

// MediaPipe hand landmark indices. Landmarks arrive in this fixed order
// from the client's hand tracker.
const (
	wrist     = 0
	thumbCMC  = 1
	thumbMCP  = 2
	thumbIP   = 3
	thumbTip  = 4
	indexMCP  = 5
	indexPIP  = 6
	indexDIP  = 7
	indexTip  = 8
	middleMCP = 9
	middlePIP = 10
	middleDIP = 11
	middleTip = 12
	ringMCP   = 13
	ringPIP   = 14
	ringDIP   = 15
	ringTip   = 16
	pinkyMCP  = 17
	pinkyPIP  = 18
	pinkyDIP  = 19
	pinkyTip  = 20
)

// landmarkCount is the number of points in a valid hand frame.
const landmarkCount = 21

// Palm-facing categories. MediaPipe z grows away from the camera, so a
// negative mean palm depth means the palm faces the viewer.
const (
	PalmCamera = "camera"
	PalmAway   = "away"
	PalmSide   = "side"
)

// Thumb-position categories.
const (
	ThumbExtended = "extended"
	ThumbAcross   = "across"
	ThumbTucked   = "tucked"
)

const (
	palmFacingThreshold  = 0.05
	spreadThreshold      = 0.4
	thumbTuckedThreshold = 0.08
	thumbAcrossThreshold = 0.05
)

// Landmark is one 3D hand point with x,y normalized to the frame and z as
// relative depth.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FingerValues holds one value per finger, thumb first.
type FingerValues struct {
	Thumb  float64 `json:"thumb"`
	Index  float64 `json:"index"`
	Middle float64 `json:"middle"`
	Ring   float64 `json:"ring"`
	Pinky  float64 `json:"pinky"`
}

// SpreadValues holds normalized tip-to-tip distances of adjacent fingers.
type SpreadValues struct {
	ThumbIndex  float64 `json:"thumbIndex"`
	IndexMiddle float64 `json:"indexMiddle"`
	MiddleRing  float64 `json:"middleRing"`
	RingPinky   float64 `json:"ringPinky"`
}

// Features are the normalized descriptors derived from one hand frame.
// The JSON shape matches what the client computes locally, so either side
// can produce them.
type Features struct {
	FingerCurls        FingerValues `json:"fingerCurls"`
	FingertipDistances FingerValues `json:"fingertipDistances"`
	FingerSpread       SpreadValues `json:"fingerSpread"`
	PalmFacing         string       `json:"palmFacing"`
	ThumbPosition      string       `json:"thumbPosition"`
	FingersSpread      bool         `json:"fingersSpread"`
}

// Frame is one detected hand at a single instant.
type Frame struct {
	Landmarks  []Landmark `json:"landmarks"`
	Handedness string     `json:"handedness"`
	Confidence float64    `json:"confidence"`
	Timestamp  int64      `json:"timestamp"`
	Features   *Features  `json:"features,omitempty"`
}

// ExtractFeatures derives pose descriptors from raw landmarks. Returns nil
// unless exactly 21 points are present. Pure and deterministic: the same
// landmarks always produce the same features.
func ExtractFeatures(lm []Landmark) *Features {
	if len(lm) != landmarkCount {
		return nil
	}

	f := &Features{
		FingerCurls: FingerValues{
			Thumb:  fingerCurl(lm, thumbCMC, thumbMCP, thumbIP, thumbTip),
			Index:  fingerCurl(lm, indexMCP, indexPIP, indexDIP, indexTip),
			Middle: fingerCurl(lm, middleMCP, middlePIP, middleDIP, middleTip),
			Ring:   fingerCurl(lm, ringMCP, ringPIP, ringDIP, ringTip),
			Pinky:  fingerCurl(lm, pinkyMCP, pinkyPIP, pinkyDIP, pinkyTip),
		},
	}

	// Fingertip distances from the wrist, normalized by the wrist to
	// middle-fingertip distance so hand size and camera distance cancel out.
	handScale := dist(lm[wrist], lm[middleTip])
	if handScale < 1e-9 {
		handScale = 1e-9
	}
	f.FingertipDistances = FingerValues{
		Thumb:  dist(lm[wrist], lm[thumbTip]) / handScale,
		Index:  dist(lm[wrist], lm[indexTip]) / handScale,
		Middle: dist(lm[wrist], lm[middleTip]) / handScale,
		Ring:   dist(lm[wrist], lm[ringTip]) / handScale,
		Pinky:  dist(lm[wrist], lm[pinkyTip]) / handScale,
	}

	// Adjacent tip-to-tip spreads, normalized by the knuckle span.
	span := dist(lm[indexMCP], lm[pinkyMCP])
	if span < 1e-9 {
		span = 1e-9
	}
	f.FingerSpread = SpreadValues{
		ThumbIndex:  clamp01(dist(lm[thumbTip], lm[indexTip]) / span),
		IndexMiddle: clamp01(dist(lm[indexTip], lm[middleTip]) / span),
		MiddleRing:  clamp01(dist(lm[middleTip], lm[ringTip]) / span),
		RingPinky:   clamp01(dist(lm[ringTip], lm[pinkyTip]) / span),
	}
	avgSpread := (f.FingerSpread.IndexMiddle + f.FingerSpread.MiddleRing + f.FingerSpread.RingPinky) / 3
	f.FingersSpread = avgSpread > spreadThreshold

	// Palm orientation from the mean depth of wrist and outer knuckles.
	meanZ := (lm[wrist].Z + lm[indexMCP].Z + lm[pinkyMCP].Z) / 3
	switch {
	case meanZ < -palmFacingThreshold:
		f.PalmFacing = PalmCamera
	case meanZ > palmFacingThreshold:
		f.PalmFacing = PalmAway
	default:
		f.PalmFacing = PalmSide
	}

	f.ThumbPosition = thumbPosition(lm)

	return f
}

// fingerCurl measures how bent a finger is from the angles at its two middle
// joints: 0 for a straight finger, 1 for a fully folded one.
func fingerCurl(lm []Landmark, mcp, pip, dip, tip int) float64 {
	a1 := angle(lm[mcp], lm[pip], lm[dip])
	a2 := angle(lm[pip], lm[dip], lm[tip])
	return clamp01(1 - (a1+a2)/2/math.Pi)
}

// angle returns the angle at vertex b formed by points a and c, in radians
// within [0, pi]. Degenerate (zero-length) segments yield pi, which reads as
// a straight joint.
func angle(a, b, c Landmark) float64 {
	v1x, v1y, v1z := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	v2x, v2y, v2z := c.X-b.X, c.Y-b.Y, c.Z-b.Z

	n1 := math.Sqrt(v1x*v1x + v1y*v1y + v1z*v1z)
	n2 := math.Sqrt(v2x*v2x + v2y*v2y + v2z*v2z)
	if n1 < 1e-9 || n2 < 1e-9 {
		return math.Pi
	}

	cos := (v1x*v2x + v1y*v2y + v1z*v2z) / (n1 * n2)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}

func thumbPosition(lm []Landmark) string {
	palmCenter := centroid(lm[wrist], lm[indexMCP], lm[middleMCP], lm[ringMCP], lm[pinkyMCP])
	if dist(lm[thumbTip], palmCenter) < thumbTuckedThreshold {
		return ThumbTucked
	}

	handCenter := centroid(lm...)
	if math.Abs(lm[thumbTip].X-handCenter.X) < thumbAcrossThreshold {
		return ThumbAcross
	}
	return ThumbExtended
}

func centroid(points ...Landmark) Landmark {
	var c Landmark
	for _, p := range points {
		c.X += p.X
		c.Y += p.Y
		c.Z += p.Z
	}
	n := float64(len(points))
	c.X /= n
	c.Y /= n
	c.Z /= n
	return c
}

func dist(a, b Landmark) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
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
