package model

import "fmt"

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

// Face indexes the six faces of a cube: +x, -x, +y, -y, +z, -z.
type Face uint8

const (
	FacePosX Face = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

const FaceCount = 6

func (f Face) Valid() bool {
	return f < FaceCount
}

func (f Face) Axis() Axis {
	switch f {
	case FacePosX, FaceNegX:
		return AxisX
	case FacePosY, FaceNegY:
		return AxisY
	default:
		return AxisZ
	}
}

// Opposite returns the face that touches f across a connection.
func (f Face) Opposite() Face {
	return f ^ 1
}

// Offset is the unit displacement from a block's center to its neighbour
// across f.
func (f Face) Offset() Vec3 {
	switch f {
	case FacePosX:
		return Vec3{X: UnitSize}
	case FaceNegX:
		return Vec3{X: -UnitSize}
	case FacePosY:
		return Vec3{Y: UnitSize}
	case FaceNegY:
		return Vec3{Y: -UnitSize}
	case FacePosZ:
		return Vec3{Z: UnitSize}
	default:
		return Vec3{Z: -UnitSize}
	}
}

func (f Face) String() string {
	names := [...]string{"+x", "-x", "+y", "-y", "+z", "-z"}
	if !f.Valid() {
		return fmt.Sprintf("face(%d)", uint8(f))
	}
	return names[f]
}

// FaceMask is a 6-bit occupancy set, one bit per Face.
type FaceMask uint8

func (m FaceMask) Occupied(f Face) bool {
	return m&(1<<f) != 0
}

func (m FaceMask) With(f Face) FaceMask {
	return m | 1<<f
}

func (m FaceMask) Full() bool {
	return m&0x3f == 0x3f
}

// FreeFaces lists unoccupied faces in face order.
func (m FaceMask) FreeFaces() []Face {
	out := make([]Face, 0, FaceCount)
	for f := Face(0); f < FaceCount; f++ {
		if !m.Occupied(f) {
			out = append(out, f)
		}
	}
	return out
}
