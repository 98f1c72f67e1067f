package gesture

import (
	"errors"

	"github.com/ayusman/mingshan/internal/detector"
)

// Finger identifies one of the five fingers.
type Finger int

const (
	Thumb Finger = iota
	IndexFinger
	MiddleFinger
	RingFinger
	Pinky
	numFingers
)

// fingerJoints maps each finger to its tip and the joint it is measured
// against. The thumb has no PIP, its MCP plays that role.
var fingerJoints = [numFingers]struct{ tip, joint int }{
	Thumb:        {detector.ThumbTip, detector.ThumbMCP},
	IndexFinger:  {detector.IndexTip, detector.IndexPIP},
	MiddleFinger: {detector.MiddleTip, detector.MiddlePIP},
	RingFinger:   {detector.RingTip, detector.RingPIP},
	Pinky:        {detector.PinkyTip, detector.PinkyPIP},
}

// Config holds the classifier's tunable constants.
type Config struct {
	// ExtensionRatio is how much farther from the wrist a fingertip must be
	// than its joint for the finger to count as extended (strictly greater).
	ExtensionRatio float64
	// OpenRange is the rotation in radians reached at either frame edge
	// while the hand is open.
	OpenRange float64
	// PointingRange is the rotation in radians reached at either frame edge
	// while pointing.
	PointingRange float64
	// Mirror flips horizontal positions because the preview is shown mirrored.
	Mirror bool
	// ThumbOnlyIsFist folds a lone extended thumb into FIST.
	ThumbOnlyIsFist bool
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		ExtensionRatio:  1.1,
		OpenRange:       3.0,
		PointingRange:   2.0,
		Mirror:          true,
		ThumbOnlyIsFist: true,
	}
}

// Validate reports configuration values the classifier cannot work with.
func (c Config) Validate() error {
	if c.ExtensionRatio <= 0 {
		return errors.New("gesture: extension ratio must be positive")
	}
	if c.OpenRange < 0 || c.PointingRange < 0 {
		return errors.New("gesture: rotation ranges must not be negative")
	}
	return nil
}

// Pose summarises which fingers of a hand are extended.
type Pose struct {
	Extended [numFingers]bool
	Count    int
}

// only reports whether exactly the given finger is extended.
func (p Pose) only(f Finger) bool {
	return p.Count == 1 && p.Extended[f]
}

// rule is one precedence step: the first rule whose match returns true
// produces the intent.
type rule struct {
	kind  Kind
	match func(c *Classifier, p Pose) bool
	build func(c *Classifier, h *detector.HandLandmarks) Intent
}

var rules = []rule{
	{
		kind:  KindOpen,
		match: func(_ *Classifier, p Pose) bool { return p.Count >= 4 },
		build: func(c *Classifier, h *detector.HandLandmarks) Intent {
			return Open(c.rotation(h.Points[detector.MiddleMCP].X, c.config.OpenRange))
		},
	},
	{
		kind: KindFist,
		match: func(c *Classifier, p Pose) bool {
			return p.Count == 0 || (c.config.ThumbOnlyIsFist && p.only(Thumb))
		},
		build: func(*Classifier, *detector.HandLandmarks) Intent { return Fist() },
	},
	{
		kind: KindPointing,
		match: func(_ *Classifier, p Pose) bool {
			return p.Extended[IndexFinger] && !p.Extended[MiddleFinger] && !p.Extended[RingFinger] && !p.Extended[Pinky]
		},
		build: func(c *Classifier, h *detector.HandLandmarks) Intent {
			return Pointing(c.rotation(h.Points[detector.IndexTip].X, c.config.PointingRange))
		},
	},
}

// Classifier maps hand landmarks to intents. It keeps no state between
// calls, so it is safe for concurrent use.
type Classifier struct {
	config Config
}

// NewClassifier creates a classifier with the given configuration.
func NewClassifier(config Config) *Classifier {
	return &Classifier{config: config}
}

// Config returns the classifier configuration.
func (c *Classifier) Config() Config {
	return c.config
}

// Classify classifies the first detected hand. With no hands the result is
// None: dispersion is held and rotation returns to the automatic spin.
func (c *Classifier) Classify(hands []detector.HandLandmarks) Intent {
	if len(hands) == 0 {
		return None()
	}
	return c.ClassifyHand(&hands[0])
}

// ClassifyHand classifies a single hand.
func (c *Classifier) ClassifyHand(hand *detector.HandLandmarks) Intent {
	if hand == nil {
		return None()
	}

	pose := c.Pose(hand)
	for _, r := range rules {
		if r.match(c, pose) {
			return r.build(c, hand)
		}
	}
	return None()
}

// Pose reports which fingers of hand are extended.
func (c *Classifier) Pose(hand *detector.HandLandmarks) Pose {
	var p Pose
	for f := Thumb; f < numFingers; f++ {
		if c.Extended(hand, f) {
			p.Extended[f] = true
			p.Count++
		}
	}
	return p
}

// Extended reports whether finger f is extended: the wrist-to-tip distance
// must exceed ExtensionRatio times the wrist-to-joint distance.
func (c *Classifier) Extended(hand *detector.HandLandmarks, f Finger) bool {
	j := fingerJoints[f]
	return hand.FromWrist(j.tip) > c.config.ExtensionRatio*hand.FromWrist(j.joint)
}

// rotation maps a normalized horizontal position to [-rng, +rng].
func (c *Classifier) rotation(x, rng float64) float64 {
	if c.config.Mirror {
		x = 1 - x
	}
	return (x - 0.5) * 2 * rng
}
