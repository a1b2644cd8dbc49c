package sink

import (
	"math"
	"strconv"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/skeleton"
)

// fieldsPerJoint is X, Y, Z, RotX, RotY, RotZ, confidence.
const fieldsPerJoint = 7

// JointSample is one joint as it appears in an output row.
type JointSample struct {
	Raw        skeleton.Vec3
	Rotated    skeleton.Vec3
	Confidence skeleton.ConfidenceLevel
}

// Row is one tracked body in one processed frame.
type Row struct {
	// TimestampMs is milliseconds since the Unix epoch, taken when the row
	// is emitted rather than when the frame was captured.
	TimestampMs int64
	BodyID      uint32
	Joints      [skeleton.JointCount]JointSample
}

// NewRow builds a row for body, rotating every joint position by angles.
func NewRow(timestampMs int64, body skeleton.Body, angles skeleton.Angles) Row {
	r := Row{TimestampMs: timestampMs, BodyID: body.ID}
	for i, j := range body.Joints {
		r.Joints[i] = JointSample{
			Raw:        j.Position,
			Rotated:    skeleton.Rotate(j.Position, angles),
			Confidence: j.Confidence,
		}
	}
	return r
}

// Header returns the column names in output order.
func Header() []string {
	header := make([]string, 0, 2+skeleton.JointCount*fieldsPerJoint)
	header = append(header, "Timestamp", "Body")
	for _, name := range skeleton.JointNames() {
		header = append(header,
			name+"_X", name+"_Y", name+"_Z",
			name+"_RotX", name+"_RotY", name+"_RotZ",
			name+"_confidence",
		)
	}
	return header
}

// Record renders r as CSV fields. Every joint group is terminated by a
// separator, so the record ends with an empty field and the written line
// ends in ",\n" like every recording made so far.
func (r Row) Record() []string {
	rec := make([]string, 0, 3+skeleton.JointCount*fieldsPerJoint)
	rec = append(rec,
		strconv.FormatInt(r.TimestampMs, 10),
		strconv.FormatUint(uint64(r.BodyID), 10),
	)
	for _, j := range r.Joints {
		rec = append(rec,
			FormatFloat(j.Raw.X), FormatFloat(j.Raw.Y), FormatFloat(j.Raw.Z),
			FormatFloat(j.Rotated.X), FormatFloat(j.Rotated.Y), FormatFloat(j.Rotated.Z),
			strconv.Itoa(int(j.Confidence)),
		)
	}
	return append(rec, "")
}

// FormatFloat renders v the way a default-configured C++ output stream
// does: %g with six significant digits, lower-case non-finite names.
func FormatFloat(v float32) string {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', 6, 32)
}
