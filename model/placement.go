package model

// PlacementRole distinguishes excitation sources from passive monitors.
type PlacementRole string

const (
	RoleSource  PlacementRole = "source"
	RoleMonitor PlacementRole = "monitor"
)

// Axis names a coordinate axis. Port planes only use the lateral ones.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

// Direction is the sign of propagation along a placement's normal axis.
type Direction string

const (
	DirectionForward  Direction = "+"
	DirectionBackward Direction = "-"
)

// Placement describes a source or monitor plane attached to a port.
//
// Axis is the plane's normal (the injection axis); the size along it is
// always zero. A monitor with Size.Z == 0 inherits the solver's port span.
type Placement struct {
	Role      PlacementRole `json:"role"`
	PortName  string        `json:"port_name"`
	Center    Vec3          `json:"center"`
	Size      Vec3          `json:"size"`
	Axis      Axis          `json:"axis"`
	Direction Direction     `json:"direction"`
}
