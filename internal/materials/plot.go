package materials

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotNK saves n and k against wavelength as an image; the format follows
// the extension of path.
func PlotNK(nk NK, title, path string) error {
	if nk.Len() == 0 {
		return ErrEmptyTable
	}
	n := make(plotter.XYs, nk.Len())
	k := make(plotter.XYs, nk.Len())
	for i, wvl := range nk.Wavelengths {
		n[i].X, n[i].Y = wvl, nk.N[i]
		k[i].X, k[i].Y = wvl, nk.K[i]
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "wavelength"
	p.Y.Label.Text = "n, k"
	if err := plotutil.AddLines(p, "refractive index", n, "extinction", k); err != nil {
		return fmt.Errorf("plot %s: %w", title, err)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
