package model

// Region is an axis-aligned simulation box in micrometres.
type Region struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
	ZMin float64 `json:"z_min"`
	ZMax float64 `json:"z_max"`
}

// Center returns the geometric centre of the region.
func (r Region) Center() Vec3 {
	return Vec3{
		X: 0.5 * (r.XMin + r.XMax),
		Y: 0.5 * (r.YMin + r.YMax),
		Z: 0.5 * (r.ZMin + r.ZMax),
	}
}

// Size returns the extent of the region along each axis.
func (r Region) Size() Vec3 {
	return Vec3{
		X: r.XMax - r.XMin,
		Y: r.YMax - r.YMin,
		Z: r.ZMax - r.ZMin,
	}
}

// Extent is a lateral bounding box (no z information).
type Extent struct {
	XMin float64 `json:"x_min" yaml:"xmin"`
	XMax float64 `json:"x_max" yaml:"xmax"`
	YMin float64 `json:"y_min" yaml:"ymin"`
	YMax float64 `json:"y_max" yaml:"ymax"`
}

// Empty reports whether the extent has never been grown.
func (e Extent) Empty() bool {
	return e.XMin > e.XMax || e.YMin > e.YMax
}

// Union returns the smallest extent covering both e and other. Empty
// operands are ignored.
func (e Extent) Union(other Extent) Extent {
	if e.Empty() {
		return other
	}
	if other.Empty() {
		return e
	}
	out := e
	out.XMin = min(out.XMin, other.XMin)
	out.XMax = max(out.XMax, other.XMax)
	out.YMin = min(out.YMin, other.YMin)
	out.YMax = max(out.YMax, other.YMax)
	return out
}
