// Package resonance holds the pure scoring math for the memory lifecycle
// engine. Every function here is stateless and referentially transparent.
package resonance

import (
	"fmt"
	"math"

	"github.com/resonancelabs/resonance-service/internal/model"
)

// InvalidInputError reports a structurally unusable input (e.g. an empty
// value list or mismatched vector lengths).
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

// RangeError reports a value outside its domain constraint.
type RangeError struct {
	Name string
	Min  float64
	Max  float64
	Got  float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s out of range [%g,%g]: %g", e.Name, e.Min, e.Max, e.Got)
}

// HarmonicMean aggregates similarity scores in [0,1] so that one weak outlier
// punishes the cluster disproportionately: [0.9,0.9,0.1] lands near 0.245
// where the arithmetic mean would sit at 0.633. Non-positive values are
// filtered before aggregation; if everything was filtered the result is 0.
// An empty input list is an InvalidInputError.
func HarmonicMean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, &InvalidInputError{Message: "harmonic mean of empty list"}
	}
	var n int
	var sum float64
	for _, v := range values {
		if v <= 0 {
			continue
		}
		n++
		sum += 1 / v
	}
	if n == 0 {
		return 0, nil
	}
	return float64(n) / sum, nil
}

// PhiBoost converts a consonance value and a similarity into a phi delta on
// the [0,5] scale. Both inputs must be in [0,1].
func PhiBoost(psi, similarity float64) (float64, error) {
	if psi < 0 || psi > 1 {
		return 0, &RangeError{Name: "psi", Min: 0, Max: 1, Got: psi}
	}
	if similarity < 0 || similarity > 1 {
		return 0, &RangeError{Name: "similarity", Min: 0, Max: 1, Got: similarity}
	}
	return psi * similarity * model.PhiCeiling, nil
}

// StructuralWeight blends retrieval similarity with normalized phi:
// similarity carries 70% of the weight, resonance the remaining 30%.
func StructuralWeight(similarity, phi float64) (float64, error) {
	if similarity < 0 || similarity > 1 {
		return 0, &RangeError{Name: "similarity", Min: 0, Max: 1, Got: similarity}
	}
	if phi < 0 || phi > model.PhiCeiling {
		return 0, &RangeError{Name: "phi", Min: 0, Max: model.PhiCeiling, Got: phi}
	}
	return similarity*0.7 + (phi/model.PhiCeiling)*0.3, nil
}

// CapPhi clamps phi to [0,5]. Total and idempotent.
func CapPhi(phi float64) float64 {
	if phi < 0 {
		return 0
	}
	if phi > model.PhiCeiling {
		return model.PhiCeiling
	}
	return phi
}

// CosineSimilarity computes dot(a,b)/(|a||b|). Vectors must be non-empty and
// of equal length; a zero-magnitude vector yields 0, not an error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, &InvalidInputError{Message: "cosine similarity of empty vector"}
	}
	if len(a) != len(b) {
		return 0, &InvalidInputError{Message: fmt.Sprintf("cosine similarity dimension mismatch: %d vs %d", len(a), len(b))}
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// CosineDistance is 1 - CosineSimilarity.
func CosineDistance(a, b []float32) (float64, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}
