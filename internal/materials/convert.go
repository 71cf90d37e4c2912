package materials

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ConvertCSV reads a comma-delimited table with a header row and writes a
// JSON object mapping each column name to its values.
func ConvertCSV(r io.Reader, w io.Writer) error {
	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter(','),
		dataframe.HasHeader(true),
		dataframe.DefaultType(series.Float),
		dataframe.DetectTypes(false),
	)
	if df.Err != nil {
		return fmt.Errorf("read table: %w", df.Err)
	}

	cols := make(map[string][]float64, df.Ncol())
	for _, name := range df.Names() {
		col := df.Col(name)
		if col.HasNaN() {
			return fmt.Errorf("column %q has non-numeric values", name)
		}
		cols[name] = col.Float()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(cols)
}
