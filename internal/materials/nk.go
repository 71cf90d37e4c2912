// Package materials reads refractive index tables and turns them into the
// media each solver understands.
package materials

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/signalsfoundry/fdtd-bridge/core"
)

// Keys used by the bundled material library files.
const (
	WavelengthKey = "wavelength(m)"
	IndexKey      = "Re(index)"
	ExtinctionKey = "Im(index)"
)

// ErrEmptyTable is returned for tables without samples or with columns of
// different length.
var ErrEmptyTable = errors.New("materials: empty or ragged n/k table")

// NK holds a sampled complex refractive index. Wavelengths are in the unit
// of the source file (meters for the library files).
type NK struct {
	Wavelengths []float64
	N           []float64
	K           []float64
}

// Len returns the number of samples.
func (nk NK) Len() int { return len(nk.Wavelengths) }

// ReadNK loads wavelength, n and k columns from a JSON table.
func ReadNK(path, wvlKey, nKey, kKey string) (NK, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NK{}, err
	}
	var cols map[string][]float64
	if err := json.Unmarshal(data, &cols); err != nil {
		return NK{}, fmt.Errorf("decode %s: %w", path, err)
	}

	nk := NK{Wavelengths: cols[wvlKey], N: cols[nKey], K: cols[kKey]}
	for key, col := range map[string][]float64{wvlKey: nk.Wavelengths, nKey: nk.N} {
		if col == nil {
			return NK{}, fmt.Errorf("%s: missing column %q: %w", path, key, ErrEmptyTable)
		}
	}
	if nk.K == nil {
		nk.K = make([]float64, len(nk.N))
	}
	if nk.Len() == 0 || len(nk.N) != nk.Len() || len(nk.K) != nk.Len() {
		return NK{}, fmt.Errorf("%s: %w", path, ErrEmptyTable)
	}
	return nk, nil
}

// Sample is one row of a sampled permittivity table.
type Sample struct {
	Frequency    float64 // Hz
	Permittivity float64
}

// SampledPermittivity converts an n/k table with wavelengths in meters into
// frequency/permittivity rows (f = c/λ, ε = n²). Loss is not carried.
func SampledPermittivity(nk NK) []Sample {
	out := make([]Sample, nk.Len())
	for i, wvl := range nk.Wavelengths {
		out[i] = Sample{
			Frequency:    core.SpeedOfLight / wvl,
			Permittivity: nk.N[i] * nk.N[i],
		}
	}
	return out
}

// FindClosest returns the value in values nearest to target and its index.
// The first of equally close values wins. It returns -1 for an empty slice.
func FindClosest(values []float64, target float64) (float64, int) {
	best := -1
	for i, v := range values {
		if best < 0 || math.Abs(v-target) < math.Abs(values[best]-target) {
			best = i
		}
	}
	if best < 0 {
		return 0, -1
	}
	return values[best], best
}

// IndexAt returns n and k at the sample nearest to wavelength.
func (nk NK) IndexAt(wavelength float64) (n, k float64, ok bool) {
	_, i := FindClosest(nk.Wavelengths, wavelength)
	if i < 0 {
		return 0, 0, false
	}
	return nk.N[i], nk.K[i], true
}
