package features

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultInputDim is the feature vector length trained models expect.
const DefaultInputDim = 64

// Vector is a fixed-length feature vector. Every element is finite; builders
// route all values through ComposeVector which sanitizes NaN and infinities.
type Vector []float64

// linearTermScale normalizes numeric literals extracted from free text.
const linearTermScale = 100.0

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Normalize divides value by scale and clamps the quotient to [-1, 1].
// NaN maps to 0 and infinities map to their sign so a bad sensor reading
// can never poison a vector. A non-positive or non-finite scale yields 0.
func Normalize(value, scale float64) float64 {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return 0
	}
	if math.IsNaN(value) {
		return 0
	}
	if math.IsInf(value, 1) {
		return 1
	}
	if math.IsInf(value, -1) {
		return -1
	}
	return clamp(value/scale, -1, 1)
}

// Ratio returns part/total clamped to [-1, 1], or 0 when total is 0.
func Ratio(part, total float64) float64 {
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return 0
	}
	if math.IsNaN(part) {
		return 0
	}
	return clamp(part/total, -1, 1)
}

// KeywordFeats returns one binary slot per keyword, set when the keyword
// occurs in text as a case-insensitive substring.
func KeywordFeats(text string, keywords []string) []float64 {
	lower := strings.ToLower(text)
	feats := make([]float64, len(keywords))
	for i, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(keyword)) {
			feats[i] = 1
		}
	}
	return feats
}

// LinearFeats extracts up to four numeric literals from free text (a math
// question, an equation, a quantity-laden sentence), normalizes each by a
// fixed scale, and appends a fifth slot holding the normalized sum of
// absolute magnitudes.
func LinearFeats(equation string) []float64 {
	feats := make([]float64, 5)
	matches := numberPattern.FindAllString(equation, 4)

	var magnitude float64
	for i, match := range matches {
		value, err := strconv.ParseFloat(match, 64)
		if err != nil {
			continue
		}
		feats[i] = Normalize(value, linearTermScale)
		magnitude += math.Abs(value)
	}
	feats[4] = Normalize(magnitude, linearTermScale)
	return feats
}

// ComposeVector assembles a vector of exactly inputDim elements: missing
// slots are zero-padded, extra values are truncated, and every element is
// sanitized to a finite value. A non-positive inputDim falls back to
// DefaultInputDim so the result length is always usable downstream.
func ComposeVector(inputDim int, values []float64) Vector {
	if inputDim <= 0 {
		inputDim = DefaultInputDim
	}
	vector := make(Vector, inputDim)
	for i := 0; i < inputDim && i < len(values); i++ {
		vector[i] = sanitize(values[i])
	}
	return vector
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if math.IsInf(v, 1) {
		return 1
	}
	if math.IsInf(v, -1) {
		return -1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
