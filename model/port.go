package model

// Point2 is a lateral (x, y) coordinate in micrometres.
type Point2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Vec3 is an (x, y, z) triple in micrometres. It is used both for
// positions and for sizes.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LayerKey identifies a GDS layer by its (layer number, datatype) pair.
type LayerKey struct {
	Layer    int `json:"layer" yaml:"layer"`
	Datatype int `json:"datatype" yaml:"datatype"`
}

// Port is a named, located, oriented attachment point on a device.
//
// Orientation is the outward propagation direction in degrees and is
// expected to be one of 0, 90, 180 or 270.
type Port struct {
	Name        string   `json:"name"`
	Center      Point2   `json:"center"`
	Width       float64  `json:"width"`
	Orientation float64  `json:"orientation"`
	Layer       LayerKey `json:"layer"`
}

// PortSet maps port names to ports as read from a layout.
type PortSet map[string]Port
