// Package skeleton owns the body-tracking data model.
//
// Responsibilities: the fixed 32-joint skeleton layout, per-joint position,
// orientation and confidence, the reference-frame rotation applied before
// output, and the line-oriented wire codec used by the skeleton bridge.
// Key types: JointID, Joint, Body, Vec3, Angles.
//
// Positions are in the sensor's native depth-camera space (millimetres,
// single precision).
package skeleton
