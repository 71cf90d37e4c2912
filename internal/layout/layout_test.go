package layout

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalsfoundry/fdtd-bridge/model"
)

// gdsBuilder emits just enough GDSII for the reader tests.
type gdsBuilder struct{ buf bytes.Buffer }

func (b *gdsBuilder) rec(kind, dtype byte, data []byte) {
	var head [4]byte
	binary.BigEndian.PutUint16(head[0:2], uint16(len(data)+4))
	head[2], head[3] = kind, dtype
	b.buf.Write(head[:])
	b.buf.Write(data)
}

func (b *gdsBuilder) str(kind byte, s string) {
	data := []byte(s)
	if len(data)%2 == 1 {
		data = append(data, 0)
	}
	b.rec(kind, 0x06, data)
}

func (b *gdsBuilder) int16(kind byte, v int16) {
	var data [2]byte
	binary.BigEndian.PutUint16(data[:], uint16(v))
	b.rec(kind, 0x02, data[:])
}

func (b *gdsBuilder) begin(libName string, userUnit, dbMeters float64) {
	b.int16(recHeader, 600)
	b.rec(recBgnLib, 0x02, make([]byte, 24))
	b.str(recLibName, libName)
	b.rec(recUnits, dtReal8, append(encodeReal8(userUnit), encodeReal8(dbMeters)...))
}

func (b *gdsBuilder) cell(name string, body func()) {
	b.rec(recBgnStr, 0x02, make([]byte, 24))
	b.str(recStrName, name)
	body()
	b.rec(recEndStr, 0, nil)
}

func (b *gdsBuilder) boundary(layer, datatype int16, pts ...[2]int32) {
	b.rec(recBoundary, 0, nil)
	b.int16(recLayer, layer)
	b.int16(recDatatype, datatype)
	data := make([]byte, 0, 8*(len(pts)+1))
	for _, p := range append(pts, pts[0]) {
		data = binary.BigEndian.AppendUint32(data, uint32(p[0]))
		data = binary.BigEndian.AppendUint32(data, uint32(p[1]))
	}
	b.rec(recXY, dtInt32, data)
	b.rec(recEndEl, 0, nil)
}

func (b *gdsBuilder) sref(name string) {
	b.rec(recSRef, 0, nil)
	b.str(recSName, name)
	b.rec(recXY, dtInt32, make([]byte, 8))
	b.rec(recEndEl, 0, nil)
}

func (b *gdsBuilder) end() []byte {
	b.rec(recEndLib, 0, nil)
	return b.buf.Bytes()
}

func encodeReal8(v float64) []byte {
	out := make([]byte, 8)
	if v == 0 {
		return out
	}
	var sign uint64
	if v < 0 {
		sign, v = 1, -v
	}
	exp := 64
	for v >= 1 {
		v /= 16
		exp++
	}
	for v < 1.0/16 {
		v *= 16
		exp--
	}
	mant := uint64(v * (1 << 56))
	binary.BigEndian.PutUint64(out, sign<<63|uint64(exp)<<56|mant)
	return out
}

// mmi builds a 20 x 4 µm body on (1, 0) plus a slab marker on (2, 0),
// with 1 nm database units.
func mmi() []byte {
	var b gdsBuilder
	b.begin("lib", 1e-3, 1e-9)
	b.cell("taper", func() {
		b.boundary(1, 0, [2]int32{0, 0}, [2]int32{1000, 0}, [2]int32{1000, 1000})
	})
	b.cell("mmi", func() {
		b.boundary(1, 0, [2]int32{0, -2000}, [2]int32{20000, -2000}, [2]int32{20000, 2000}, [2]int32{0, 2000})
		b.boundary(2, 0, [2]int32{-500, -250}, [2]int32{0, -250}, [2]int32{0, 250})
		b.sref("taper")
	})
	return b.end()
}

func TestReal8RoundTrip(t *testing.T) {
	for _, v := range []float64{1e-3, 1e-9, 0.5, -2.25, 1} {
		if got := decodeReal8(encodeReal8(v)); math.Abs(got-v) > 1e-15*math.Abs(v) {
			t.Fatalf("decodeReal8(encodeReal8(%g)) = %g", v, got)
		}
	}
	if got := decodeReal8(make([]byte, 8)); got != 0 {
		t.Fatalf("zero real8 decoded as %g", got)
	}
}

func TestReadGDS(t *testing.T) {
	lib, err := ReadGDS(bytes.NewReader(mmi()))
	if err != nil {
		t.Fatalf("ReadGDS: %v", err)
	}
	if lib.Name != "lib" {
		t.Fatalf("library name = %q", lib.Name)
	}
	if len(lib.Cells) != 2 {
		t.Fatalf("cells = %d, want 2", len(lib.Cells))
	}

	top, ok := lib.Top("")
	if !ok || top.Name != "mmi" {
		t.Fatalf("Top = %v, %v; want mmi", top, ok)
	}
	if len(top.Polygons) != 2 {
		t.Fatalf("polygons = %d, want 2", len(top.Polygons))
	}
	body := top.Polygons[0]
	if body.Layer != (model.LayerKey{Layer: 1}) {
		t.Fatalf("layer = %+v", body.Layer)
	}
	if len(body.Points) != 4 {
		t.Fatalf("closing vertex not dropped: %d points", len(body.Points))
	}
	want := model.Extent{XMin: 0, XMax: 20, YMin: -2, YMax: 2}
	if got := body.Extent(); math.Abs(got.XMax-want.XMax) > 1e-9 || math.Abs(got.YMin-want.YMin) > 1e-9 {
		t.Fatalf("extent = %+v, want %+v", got, want)
	}

	named, ok := lib.Top("taper")
	if !ok || named.Name != "taper" {
		t.Fatalf("Top(taper) = %v", named)
	}
}

func TestReadGDSMalformed(t *testing.T) {
	full := mmi()
	cases := map[string][]byte{
		"truncated":  full[:len(full)-6],
		"no endlib":  full[:len(full)-4],
		"short size": {0x00, 0x02, 0x00, 0x00},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadGDS(bytes.NewReader(data)); !errors.Is(err, ErrMalformedGDS) {
				t.Fatalf("err = %v, want ErrMalformedGDS", err)
			}
		})
	}
}

const sidecarYAML = `name: mmi
ports:
  o1: {center: [0, 0], width: 0.5, orientation: 180, layer: [1, 0], port_type: optical}
  o2: {center: [20, 1], width: 0.5, orientation: 0, layer: [1, 0]}
  o3: {center: [20, -1], width: 0.5, orientation: 0, layer: [1, 0]}
  e1: {center: [10, 2], width: 4, orientation: 90, layer: [3, 0], port_type: electrical}
`

func writeDevice(t *testing.T, dir string) string {
	t.Helper()
	gds := filepath.Join(dir, "mmi.gds")
	if err := os.WriteFile(gds, mmi(), 0o644); err != nil {
		t.Fatalf("write gds: %v", err)
	}
	if err := os.WriteFile(SidecarPath(gds), []byte(sidecarYAML), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
	return gds
}

func TestLoadDevice(t *testing.T) {
	gds := writeDevice(t, t.TempDir())
	dev, err := Load(gds)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if dev.Name != "mmi" || dev.Cell != "mmi" {
		t.Fatalf("name = %q, cell = %q", dev.Name, dev.Cell)
	}
	if len(dev.Ports) != 3 {
		t.Fatalf("ports = %d, want 3 optical ports", len(dev.Ports))
	}
	o2 := dev.Ports["o2"]
	if o2.Center != (model.Point2{X: 20, Y: 1}) || o2.Orientation != 0 || o2.Width != 0.5 {
		t.Fatalf("o2 = %+v", o2)
	}

	layers := dev.Layers()
	if len(layers) != 2 || layers[0].Layer != 1 || layers[1].Layer != 2 {
		t.Fatalf("layers = %+v", layers)
	}
	if n := len(dev.PolygonsOn(model.LayerKey{Layer: 2})); n != 1 {
		t.Fatalf("polygons on (2, 0) = %d", n)
	}

	ext := dev.Extent()
	if math.Abs(ext.XMin+0.5) > 1e-9 || math.Abs(ext.XMax-20) > 1e-9 || math.Abs(ext.YMax-2) > 1e-9 {
		t.Fatalf("extent = %+v", ext)
	}
}

func TestExtentFallsBackToPorts(t *testing.T) {
	dev := &Device{Ports: model.PortSet{
		"o1": {Name: "o1", Center: model.Point2{X: 0, Y: 0}, Width: 1},
		"o2": {Name: "o2", Center: model.Point2{X: 5, Y: 0}, Width: 1},
	}}
	got := dev.Extent()
	if got.XMin != 0 || got.XMax != 5 || got.YMin != -1 || got.YMax != 1 {
		t.Fatalf("extent = %+v", got)
	}
}

func TestLoadPortsRejectsBadEntries(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"center.yml": "ports:\n  o1: {center: [1], width: 1, orientation: 0}\n",
		"width.yml":  "ports:\n  o1: {center: [0, 0], width: 0, orientation: 0}\n",
		"layer.yml":  "ports:\n  o1: {center: [0, 0], width: 1, orientation: 0, layer: [1]}\n",
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, _, err := LoadPorts(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestCopyTo(t *testing.T) {
	src := writeDevice(t, t.TempDir())
	dev, err := Load(src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "out", "run.gds")
	moved, err := CopyTo(dev, dst)
	if err != nil {
		t.Fatalf("CopyTo: %v", err)
	}
	if moved.Path != dst || dev.Path != src {
		t.Fatalf("paths = %q, %q", moved.Path, dev.Path)
	}
	reloaded, err := Load(dst)
	if err != nil {
		t.Fatalf("Load copy: %v", err)
	}
	if len(reloaded.Polygons) != len(dev.Polygons) || len(reloaded.Ports) != len(dev.Ports) {
		t.Fatalf("copy differs: %d/%d polygons, %d/%d ports",
			len(reloaded.Polygons), len(dev.Polygons), len(reloaded.Ports), len(dev.Ports))
	}
}
