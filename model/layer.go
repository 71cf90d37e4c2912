package model

// LayerLevel is one entry of a layer stack: a named GDS layer extruded
// from ZMin to ZMin+Thickness.
type LayerLevel struct {
	Name      string   `json:"name"`
	Layer     LayerKey `json:"layer"`
	ZMin      float64  `json:"zmin"`
	Thickness float64  `json:"thickness"`
}

// ZMax returns the top of the slab.
func (l LayerLevel) ZMax() float64 { return l.ZMin + l.Thickness }

// StructureKind says how a structure's geometry is expressed.
type StructureKind string

const (
	// StructureGDSLayer is a whole GDS layer imported by the solver itself.
	StructureGDSLayer StructureKind = "gds_layer"
	// StructurePolySlab is an extruded polygon with explicit vertices.
	StructurePolySlab StructureKind = "polyslab"
	// StructureBox is an axis-aligned box.
	StructureBox StructureKind = "box"
)

// Structure is a piece of 3D geometry together with the material it is
// made of. Material is a logical name ("guiding", "cladding") resolved by
// each back-end.
type Structure struct {
	Name     string        `json:"name"`
	Kind     StructureKind `json:"kind"`
	Layer    LayerKey      `json:"layer"`
	Vertices []Point2      `json:"vertices,omitempty"`
	ZMin     float64       `json:"zmin"`
	ZMax     float64       `json:"zmax"`
	// Box bounds; only meaningful for StructureBox.
	Min      Vec3    `json:"min"`
	Max      Vec3    `json:"max"`
	Material string  `json:"material"`
	Index    float64 `json:"index,omitempty"`
}
