package skeleton

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned when a bridge line cannot be decoded into a
// Frame.
var ErrMalformedFrame = errors.New("malformed skeleton frame")

// BodyIndexBackground marks body index map pixels that belong to no body.
const BodyIndexBackground uint8 = 255

// IndexMap is the tracker's per-pixel body index image (one byte per
// pixel, row-major, stride == width).
type IndexMap struct {
	Width  int
	Height int
	Pixels []uint8
}

// MiddleLine returns the pixel row at Height/2, or nil for an empty map.
func (m *IndexMap) MiddleLine() []uint8 {
	if m == nil || m.Width <= 0 || m.Height <= 0 || len(m.Pixels) < m.Width*m.Height {
		return nil
	}
	row := m.Height / 2
	return m.Pixels[row*m.Width : (row+1)*m.Width]
}

// Frame is one decoded bridge message: every body the external tracker saw
// in a single capture, plus the optional body index map.
type Frame struct {
	DeviceTimestampUsec uint64
	Bodies              []Body
	BodyIndexMap        *IndexMap
}

type wireFrame struct {
	DeviceTimestampUsec uint64        `json:"device_timestamp_us"`
	Bodies              []wireBody    `json:"bodies"`
	BodyIndexMap        *wireIndexMap `json:"body_index_map,omitempty"`
}

// wireBody joints are [x, y, z, qw, qx, qy, qz, confidence].
type wireBody struct {
	ID     uint32       `json:"id"`
	Joints [][8]float32 `json:"joints"`
}

type wireIndexMap struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"data"`
}

// MarshalFrame encodes f as a single JSON line without the trailing newline.
func MarshalFrame(f Frame) ([]byte, error) {
	wf := wireFrame{
		DeviceTimestampUsec: f.DeviceTimestampUsec,
		Bodies:              make([]wireBody, len(f.Bodies)),
	}
	for i, b := range f.Bodies {
		wb := wireBody{ID: b.ID, Joints: make([][8]float32, JointCount)}
		for j, jt := range b.Joints {
			wb.Joints[j] = [8]float32{
				jt.Position.X, jt.Position.Y, jt.Position.Z,
				jt.Orientation.W, jt.Orientation.X, jt.Orientation.Y, jt.Orientation.Z,
				float32(jt.Confidence),
			}
		}
		wf.Bodies[i] = wb
	}
	if m := f.BodyIndexMap; m != nil {
		wf.BodyIndexMap = &wireIndexMap{Width: m.Width, Height: m.Height, Data: m.Pixels}
	}
	return json.Marshal(wf)
}

// UnmarshalFrame decodes one bridge line. Every body must carry exactly
// JointCount joints with a defined confidence level.
func UnmarshalFrame(line []byte) (Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(line, &wf); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	f := Frame{
		DeviceTimestampUsec: wf.DeviceTimestampUsec,
		Bodies:              make([]Body, 0, len(wf.Bodies)),
	}
	for i, wb := range wf.Bodies {
		if len(wb.Joints) != JointCount {
			return Frame{}, fmt.Errorf("%w: body %d has %d joints, want %d", ErrMalformedFrame, i, len(wb.Joints), JointCount)
		}
		b := Body{ID: wb.ID}
		for j, v := range wb.Joints {
			conf := ConfidenceLevel(v[7])
			if float32(conf) != v[7] || !conf.Valid() {
				return Frame{}, fmt.Errorf("%w: body %d joint %s has confidence %v", ErrMalformedFrame, i, JointID(j), v[7])
			}
			b.Joints[j] = Joint{
				Position:    Vec3{X: v[0], Y: v[1], Z: v[2]},
				Orientation: Quaternion{W: v[3], X: v[4], Y: v[5], Z: v[6]},
				Confidence:  conf,
			}
		}
		f.Bodies = append(f.Bodies, b)
	}

	if m := wf.BodyIndexMap; m != nil {
		if m.Width <= 0 || m.Height <= 0 || len(m.Data) != m.Width*m.Height {
			return Frame{}, fmt.Errorf("%w: body index map %dx%d with %d bytes", ErrMalformedFrame, m.Width, m.Height, len(m.Data))
		}
		f.BodyIndexMap = &IndexMap{Width: m.Width, Height: m.Height, Pixels: m.Data}
	}
	return f, nil
}
