package skeleton

import "fmt"

// JointCount is the number of joints in every tracked body.
const JointCount = 32

// JointID indexes a joint within Body.Joints.
type JointID int

// Canonical joint order. Output columns follow this order.
const (
	Pelvis JointID = iota
	SpineNaval
	SpineChest
	Neck
	ClavicleLeft
	ShoulderLeft
	ElbowLeft
	WristLeft
	HandLeft
	HandtipLeft
	ThumbLeft
	ClavicleRight
	ShoulderRight
	ElbowRight
	WristRight
	HandRight
	HandtipRight
	ThumbRight
	HipLeft
	KneeLeft
	AnkleLeft
	FootLeft
	HipRight
	KneeRight
	AnkleRight
	FootRight
	Head
	Nose
	EyeLeft
	EarLeft
	EyeRight
	EarRight
)

var jointNames = [JointCount]string{
	"Pelvis",
	"SpineNaval",
	"SpineChest",
	"Neck",
	"ClavicleLeft",
	"ShoulderLeft",
	"ElbowLeft",
	"WristLeft",
	"HandLeft",
	"HandtipLeft",
	"ThumbLeft",
	"ClavicleRight",
	"ShoulderRight",
	"ElbowRight",
	"WristRight",
	"HandRight",
	"HandtipRight",
	"ThumbRight",
	"HipLeft",
	"KneeLeft",
	"AnkleLeft",
	"FootLeft",
	"HipRight",
	"KneeRight",
	"AnkleRight",
	"FootRight",
	"Head",
	"Nose",
	"EyeLeft",
	"EarLeft",
	"EyeRight",
	"EarRight",
}

// String returns the joint's column-name prefix, e.g. "SpineNaval".
func (j JointID) String() string {
	if j < 0 || int(j) >= JointCount {
		return fmt.Sprintf("JointID(%d)", int(j))
	}
	return jointNames[j]
}

// JointNames returns the joint names in canonical order.
func JointNames() []string {
	out := make([]string, JointCount)
	copy(out, jointNames[:])
	return out
}

// ConfidenceLevel is the tracker's ordinal quality estimate for a joint.
type ConfidenceLevel int

const (
	ConfidenceNone ConfidenceLevel = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

func (c ConfidenceLevel) String() string {
	switch c {
	case ConfidenceNone:
		return "none"
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return fmt.Sprintf("ConfidenceLevel(%d)", int(c))
	}
}

// Valid reports whether c is one of the defined levels.
func (c ConfidenceLevel) Valid() bool {
	return c >= ConfidenceNone && c <= ConfidenceHigh
}

// Vec3 is a point in depth-camera space.
type Vec3 struct {
	X, Y, Z float32
}

// Quaternion is a joint orientation (W first, as the tracker reports it).
type Quaternion struct {
	W, X, Y, Z float32
}

// Joint is one skeletal landmark.
type Joint struct {
	Position    Vec3
	Orientation Quaternion
	Confidence  ConfidenceLevel
}

// Body is one tracked subject for one frame. ID is assigned by the tracker
// and is only meaningful within the tracker's lifetime.
type Body struct {
	ID     uint32
	Joints [JointCount]Joint
}
