package domain

import "strings"

// IdentifierDigits is the length of the national identifier printed on a card.
const IdentifierDigits = 12

// Box is an axis-aligned region in source-image pixel coordinates.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (b Box) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Union returns the minimal enclosing box of b and other. An empty side is
// ignored so unions can be folded from a zero value.
func (b Box) Union(other Box) Box {
	if b.Empty() {
		return other
	}
	if other.Empty() {
		return b
	}
	x0 := min(b.X, other.X)
	y0 := min(b.Y, other.Y)
	x1 := max(b.X+b.Width, other.X+other.Width)
	y1 := max(b.Y+b.Height, other.Y+other.Height)
	return Box{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Observation is one raw OCR hypothesis: a text fragment, where it sits on
// the image, and how sure the engine was. Lives only within a pipeline run.
type Observation struct {
	Text       string
	Box        Box
	Confidence float64
}

// PatternKind tags which matching rule located an identifier.
type PatternKind string

const (
	PatternContiguous   PatternKind = "contiguous"
	PatternGrouped444   PatternKind = "grouped_4_4_4"
	PatternLooseSpacing PatternKind = "loose_spacing"
)

// Detection is a validated identifier occurrence. Value is always exactly
// twelve digits with no separators; Region lies within image bounds.
type Detection struct {
	Value      string
	Region     Box
	Confidence float64
	Pattern    PatternKind
}

// MaskedValue renders the identifier with its leading digits hidden, grouped
// in fours the way it is printed on the card ("XXXX XXXX 9012"). Responses
// and logs only ever see this form.
func (d Detection) MaskedValue(maskedDigits int) string {
	if maskedDigits < 0 {
		maskedDigits = 0
	}
	if maskedDigits > len(d.Value) {
		maskedDigits = len(d.Value)
	}
	flat := strings.Repeat("X", maskedDigits) + d.Value[maskedDigits:]

	var groups []string
	for i := 0; i < len(flat); i += 4 {
		end := min(i+4, len(flat))
		groups = append(groups, flat[i:end])
	}
	return strings.Join(groups, " ")
}

// MaskedImage is the redaction output: encoded bytes, the format they are
// encoded in, and the regions that were actually painted over.
type MaskedImage struct {
	Data    []byte
	Format  string
	Regions []Box
}
