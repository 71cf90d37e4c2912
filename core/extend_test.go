package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/fdtd-bridge/model"
)

func TestExtendPorts(t *testing.T) {
	ports := model.PortSet{
		"o1": {Name: "o1", Center: model.Point2{X: 0, Y: 0}, Width: 0.5, Orientation: 180},
		"o2": {Name: "o2", Center: model.Point2{X: 20, Y: 1}, Width: 0.5, Orientation: 0},
		"o3": {Name: "o3", Center: model.Point2{X: 10, Y: 5}, Width: 1, Orientation: 90},
	}
	device := model.Extent{XMin: 0, XMax: 20, YMin: -2, YMax: 5}

	ext, err := ExtendPorts(ports, device, 10)
	if err != nil {
		t.Fatalf("ExtendPorts error: %v", err)
	}
	if len(ext.Extensions) != 3 {
		t.Fatalf("got %d extensions, want 3", len(ext.Extensions))
	}

	west := ext.Extensions[0]
	if west.Port.Name != "o1" {
		t.Fatalf("first extension is %q, want o1", west.Port.Name)
	}
	if west.Min != (model.Point2{X: -10, Y: -0.25}) || west.Max != (model.Point2{X: 0, Y: 0.25}) {
		t.Fatalf("o1 stub = %+v..%+v", west.Min, west.Max)
	}

	north := ext.Extensions[2]
	if north.Min != (model.Point2{X: 9.5, Y: 5}) || north.Max != (model.Point2{X: 10.5, Y: 15}) {
		t.Fatalf("o3 stub = %+v..%+v", north.Min, north.Max)
	}

	if got := ext.Ports["o2"].Center; got != (model.Point2{X: 30, Y: 1}) {
		t.Fatalf("extended o2 centre = %+v, want (30, 1)", got)
	}
	if ports["o2"].Center.X != 20 {
		t.Fatalf("original ports must not be modified")
	}

	want := model.Extent{XMin: -10, XMax: 30, YMin: -2, YMax: 15}
	if ext.Extent != want {
		t.Fatalf("extent = %+v, want %+v", ext.Extent, want)
	}
}

func TestExtendPortsSouthFacing(t *testing.T) {
	ports := model.PortSet{
		"o1": {Name: "o1", Center: model.Point2{X: 5, Y: -2}, Width: 1, Orientation: 270},
	}
	ext, err := ExtendPorts(ports, model.Extent{XMin: 0, XMax: 10, YMin: -2, YMax: 2}, 10)
	if err != nil {
		t.Fatalf("ExtendPorts error: %v", err)
	}
	south := ext.Extensions[0]
	if south.Min != (model.Point2{X: 4.5, Y: -12}) || south.Max != (model.Point2{X: 5.5, Y: -2}) {
		t.Fatalf("o1 stub = %+v..%+v", south.Min, south.Max)
	}
	if ext.Extent.YMin != -12 {
		t.Fatalf("extent = %+v, want YMin -12", ext.Extent)
	}
}

func TestExtendPorts_Errors(t *testing.T) {
	ports := model.PortSet{"o1": {Name: "o1", Width: 1, Orientation: 12}}
	if _, err := ExtendPorts(ports, model.Extent{}, 5); !errors.Is(err, ErrUnsupportedOrientation) {
		t.Fatalf("error = %v, want ErrUnsupportedOrientation", err)
	}
	if _, err := ExtendPorts(model.PortSet{}, model.Extent{}, -1); err == nil {
		t.Fatalf("expected error for negative length")
	}
}
