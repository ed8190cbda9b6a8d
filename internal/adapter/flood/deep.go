package flood

import (
	"math"

	"go.ngs.io/glorys-ic/internal/domain"
)

// FillFromDeepestValid copies the deepest valid value of a column into
// every level below it. Missing levels above it are left alone. A column
// with no valid value is returned unchanged.
func FillFromDeepestValid(col []float64) []float64 {
	filled := make([]float64, len(col))
	copy(filled, col)
	last := -1
	for k, v := range col {
		if !math.IsNaN(v) {
			last = k
		}
	}
	if last < 0 {
		return filled
	}
	for k := last + 1; k < len(filled); k++ {
		filled[k] = col[last]
	}
	return filled
}

// FillColumns applies FillFromDeepestValid to every column of f in place.
// Surface fields are left alone.
func FillColumns(f *domain.Field) {
	if f.Surface() {
		return
	}
	for t := 0; t < f.NT(); t++ {
		for j := 0; j < f.NY; j++ {
			for i := 0; i < f.NX; i++ {
				f.SetColumn(t, j, i, FillFromDeepestValid(f.Column(t, j, i)))
			}
		}
	}
}
