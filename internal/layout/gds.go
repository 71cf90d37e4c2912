// Package layout loads photonic devices: polygons from a GDSII stream and
// port metadata from a YAML sidecar.
package layout

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/signalsfoundry/fdtd-bridge/model"
)

// GDSII record types used by the reader.
const (
	recHeader   = 0x00
	recBgnLib   = 0x01
	recLibName  = 0x02
	recUnits    = 0x03
	recEndLib   = 0x04
	recBgnStr   = 0x05
	recStrName  = 0x06
	recEndStr   = 0x07
	recBoundary = 0x08
	recPath     = 0x09
	recSRef     = 0x0A
	recARef     = 0x0B
	recText     = 0x0C
	recLayer    = 0x0D
	recDatatype = 0x0E
	recXY       = 0x10
	recEndEl    = 0x11
	recSName    = 0x12
	recNode     = 0x15
	recBox      = 0x2D
	recBoxType  = 0x2E
)

// GDSII data types checked by the reader.
const (
	dtInt32 = 0x03
	dtReal8 = 0x05
)

// ErrMalformedGDS reports a stream that does not follow the GDSII grammar.
var ErrMalformedGDS = errors.New("layout: malformed GDSII stream")

// Polygon is a closed outline on one layer, in micrometres. The closing
// vertex is not repeated.
type Polygon struct {
	Layer  model.LayerKey
	Points []model.Point2
}

// Extent returns the polygon's bounding box.
func (p Polygon) Extent() model.Extent {
	e := model.Extent{XMin: math.Inf(1), XMax: math.Inf(-1), YMin: math.Inf(1), YMax: math.Inf(-1)}
	for _, pt := range p.Points {
		e.XMin = min(e.XMin, pt.X)
		e.XMax = max(e.XMax, pt.X)
		e.YMin = min(e.YMin, pt.Y)
		e.YMax = max(e.YMax, pt.Y)
	}
	return e
}

// Cell is one GDSII structure. References are recorded by name only.
type Cell struct {
	Name     string
	Polygons []Polygon
	Refs     []string
}

// Library is the decoded content of a GDSII file.
type Library struct {
	Name string
	// DBUnitMeters is the size of one database unit in metres.
	DBUnitMeters float64
	Cells        []*Cell
}

// Top returns the cell named name, or else the last cell no other cell
// references.
func (l *Library) Top(name string) (*Cell, bool) {
	referenced := make(map[string]bool)
	for _, c := range l.Cells {
		if name != "" && c.Name == name {
			return c, true
		}
		for _, r := range c.Refs {
			referenced[r] = true
		}
	}
	for i := len(l.Cells) - 1; i >= 0; i-- {
		if !referenced[l.Cells[i].Name] {
			return l.Cells[i], true
		}
	}
	return nil, false
}

type record struct {
	kind  byte
	dtype byte
	data  []byte
}

// ReadGDS decodes BOUNDARY and BOX elements of every structure in a GDSII
// stream. Coordinates are converted to micrometres.
func ReadGDS(r io.Reader) (*Library, error) {
	br := bufio.NewReader(r)
	lib := &Library{}
	dbToUm := 0.0

	var (
		cell    *Cell
		inElem  bool
		isShape bool
		isRef   bool
		poly    Polygon
	)

	for {
		rec, err := readRecord(br)
		if err == io.EOF {
			return nil, fmt.Errorf("%w: missing ENDLIB", ErrMalformedGDS)
		}
		if err != nil {
			return nil, err
		}

		switch rec.kind {
		case recHeader, recBgnLib:
		case recLibName:
			lib.Name = decodeString(rec.data)
		case recUnits:
			if rec.dtype != dtReal8 || len(rec.data) != 16 {
				return nil, fmt.Errorf("%w: bad UNITS record", ErrMalformedGDS)
			}
			lib.DBUnitMeters = decodeReal8(rec.data[8:16])
			dbToUm = lib.DBUnitMeters / 1e-6
		case recEndLib:
			if dbToUm == 0 {
				return nil, fmt.Errorf("%w: missing UNITS", ErrMalformedGDS)
			}
			return lib, nil
		case recBgnStr:
			cell = &Cell{}
		case recStrName:
			if cell == nil {
				return nil, fmt.Errorf("%w: STRNAME outside structure", ErrMalformedGDS)
			}
			cell.Name = decodeString(rec.data)
		case recEndStr:
			if cell == nil {
				return nil, fmt.Errorf("%w: ENDSTR outside structure", ErrMalformedGDS)
			}
			lib.Cells = append(lib.Cells, cell)
			cell = nil
		case recBoundary, recBox:
			inElem, isShape, isRef = true, true, false
			poly = Polygon{}
		case recPath, recText, recNode:
			inElem, isShape, isRef = true, false, false
		case recSRef, recARef:
			inElem, isShape, isRef = true, false, true
		case recSName:
			if isRef && cell != nil {
				cell.Refs = append(cell.Refs, decodeString(rec.data))
			}
		case recLayer:
			if isShape {
				poly.Layer.Layer = int(decodeInt16(rec.data))
			}
		case recDatatype, recBoxType:
			if isShape {
				poly.Layer.Datatype = int(decodeInt16(rec.data))
			}
		case recXY:
			if !isShape {
				continue
			}
			if dbToUm == 0 {
				return nil, fmt.Errorf("%w: XY before UNITS", ErrMalformedGDS)
			}
			if rec.dtype != dtInt32 || len(rec.data)%8 != 0 {
				return nil, fmt.Errorf("%w: bad XY record", ErrMalformedGDS)
			}
			poly.Points = decodePoints(rec.data, dbToUm)
		case recEndEl:
			if !inElem {
				return nil, fmt.Errorf("%w: ENDEL outside element", ErrMalformedGDS)
			}
			if isShape && cell != nil && len(poly.Points) >= 3 {
				cell.Polygons = append(cell.Polygons, poly)
			}
			inElem, isShape, isRef = false, false, false
		}
	}
}

func readRecord(r io.Reader) (record, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return record{}, fmt.Errorf("%w: truncated record header", ErrMalformedGDS)
		}
		return record{}, err
	}
	size := int(binary.BigEndian.Uint16(head[0:2]))
	if size < 4 {
		return record{}, fmt.Errorf("%w: record length %d", ErrMalformedGDS, size)
	}
	rec := record{kind: head[2], dtype: head[3], data: make([]byte, size-4)}
	if _, err := io.ReadFull(r, rec.data); err != nil {
		return record{}, fmt.Errorf("%w: truncated record 0x%02x", ErrMalformedGDS, rec.kind)
	}
	return rec, nil
}

func decodeString(b []byte) string {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

func decodeInt16(b []byte) int16 {
	if len(b) < 2 {
		return 0
	}
	return int16(binary.BigEndian.Uint16(b))
}

// decodePoints converts XY pairs and drops the repeated closing vertex.
func decodePoints(b []byte, scale float64) []model.Point2 {
	n := len(b) / 8
	pts := make([]model.Point2, 0, n)
	for i := 0; i < n; i++ {
		x := int32(binary.BigEndian.Uint32(b[8*i:]))
		y := int32(binary.BigEndian.Uint32(b[8*i+4:]))
		pts = append(pts, model.Point2{X: float64(x) * scale, Y: float64(y) * scale})
	}
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return pts
}

// decodeReal8 reads an excess-64 base-16 GDSII real.
func decodeReal8(b []byte) float64 {
	bits := binary.BigEndian.Uint64(b)
	if bits&^(1<<63) == 0 {
		return 0
	}
	sign := 1.0
	if bits>>63 != 0 {
		sign = -1
	}
	exp := int((bits>>56)&0x7f) - 64
	mant := float64(bits&0x00ffffffffffffff) / (1 << 56)
	return sign * mant * math.Pow(16, float64(exp))
}
