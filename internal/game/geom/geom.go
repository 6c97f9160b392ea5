// Package geom provides the small amount of 3D math the gameplay core needs.
// Units follow the engine convention: centimetres, degrees, Z up.
package geom

import "math"

// Vector is a 3D vector.
type Vector struct {
	X float64 `json:"x" yaml:"x" mapstructure:"x"`
	Y float64 `json:"y" yaml:"y" mapstructure:"y"`
	Z float64 `json:"z" yaml:"z" mapstructure:"z"`
}

// Add returns v + o.
func (v Vector) Add(o Vector) Vector {
	return Vector{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector {
	return Vector{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s.
func (v Vector) Scale(s float64) Vector {
	return Vector{v.X * s, v.Y * s, v.Z * s}
}

// Length returns the Euclidean length of v.
func (v Vector) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// NearlyEqual reports whether every component of v and o differs by at most tol.
func (v Vector) NearlyEqual(o Vector, tol float64) bool {
	return math.Abs(v.X-o.X) <= tol && math.Abs(v.Y-o.Y) <= tol && math.Abs(v.Z-o.Z) <= tol
}

// Rotator is an orientation in degrees.
type Rotator struct {
	Pitch float64 `json:"pitch" yaml:"pitch" mapstructure:"pitch"`
	Yaw   float64 `json:"yaw" yaml:"yaw" mapstructure:"yaw"`
	Roll  float64 `json:"roll" yaml:"roll" mapstructure:"roll"`
}

// Sub returns r - o component-wise.
func (r Rotator) Sub(o Rotator) Rotator {
	return Rotator{r.Pitch - o.Pitch, r.Yaw - o.Yaw, r.Roll - o.Roll}
}

// Vector returns the unit forward vector for r. Roll does not affect the result.
func (r Rotator) Vector() Vector {
	p := r.Pitch * math.Pi / 180
	y := r.Yaw * math.Pi / 180
	cp := math.Cos(p)
	return Vector{X: cp * math.Cos(y), Y: cp * math.Sin(y), Z: math.Sin(p)}
}
