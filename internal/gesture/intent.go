// Package gesture turns hand landmarks into control intents for the scene.
package gesture

import "fmt"

// Kind is the discrete gesture recognised in one frame.
type Kind int

const (
	// KindNone is an unknown pose or no hand at all.
	KindNone Kind = iota
	// KindOpen is an open hand: four or more fingers extended.
	KindOpen
	// KindFist is a closed hand.
	KindFist
	// KindPointing is the index finger extended alone.
	KindPointing
)

// String returns the upper-case gesture name.
func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "OPEN"
	case KindFist:
		return "FIST"
	case KindPointing:
		return "POINTING"
	default:
		return "NONE"
	}
}

// Label returns the short action shown next to the camera preview.
func (k Kind) Label() string {
	switch k {
	case KindOpen:
		return "DISPERSE"
	case KindFist:
		return "GATHER"
	case KindPointing:
		return "ROTATE"
	default:
		return "Scanning..."
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Intent is the outcome of classifying one frame. Its fields are only set
// through the constructors below, so a FIST never carries a rotation and a
// NONE never changes dispersion.
type Intent struct {
	kind     Kind
	rotation float64
}

// None is an intent that holds the current dispersion and releases manual
// rotation.
func None() Intent { return Intent{kind: KindNone} }

// Open disperses the terrain and steers rotation towards the given angle.
func Open(rotation float64) Intent { return Intent{kind: KindOpen, rotation: rotation} }

// Fist gathers the terrain and returns rotation to the automatic spin.
func Fist() Intent { return Intent{kind: KindFist} }

// Pointing gathers the terrain and steers rotation towards the given angle.
func Pointing(rotation float64) Intent { return Intent{kind: KindPointing, rotation: rotation} }

// Kind returns the gesture kind.
func (i Intent) Kind() Kind { return i.kind }

// Disperse returns the dispersion target. ok is false when the intent holds
// the previous dispersion state.
func (i Intent) Disperse() (target, ok bool) {
	switch i.kind {
	case KindOpen:
		return true, true
	case KindFist, KindPointing:
		return false, true
	default:
		return false, false
	}
}

// Rotation returns the manual rotation target in radians. ok is false when
// rotation should fall back to the automatic spin.
func (i Intent) Rotation() (angle float64, ok bool) {
	switch i.kind {
	case KindOpen, KindPointing:
		return i.rotation, true
	default:
		return 0, false
	}
}

func (i Intent) String() string {
	if angle, ok := i.Rotation(); ok {
		return fmt.Sprintf("%s(%.3f)", i.kind, angle)
	}
	return i.kind.String()
}
