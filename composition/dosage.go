package composition

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Dosage is a strength expressed in the base unit of its family.
// Per and PerUnit are set for concentrations such as 125mg/5ml.
type Dosage struct {
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
	Per     float64 `json:"per,omitempty"`
	PerUnit string  `json:"per_unit,omitempty"`
}

type unitInfo struct {
	base   string
	factor float64
}

// Magnitudes are only converted inside a family (mass, volume, IU, percent).
var amountUnits = map[string]unitInfo{
	"kg":  {"mg", 1e6},
	"g":   {"mg", 1000},
	"gm":  {"mg", 1000},
	"mg":  {"mg", 1},
	"mcg": {"mg", 0.001},
	"µg":  {"mg", 0.001},
	"μg":  {"mg", 0.001},
	"ug":  {"mg", 0.001},
	"ng":  {"mg", 1e-6},
	"l":   {"ml", 1000},
	"ml":  {"ml", 1},
	"miu": {"iu", 1e6},
	"iu":  {"iu", 1},
	"%":   {"%", 1},
}

var perUnits = map[string]unitInfo{
	"ml": {"ml", 1},
	"l":  {"ml", 1000},
	"kg": {"g", 1000},
	"g":  {"g", 1},
	"gm": {"g", 1},
	"mg": {"g", 0.001},
}

const (
	numberPattern = `(\d+(?:[.,]\d+)*)`
	unitPattern   = `(kg|mcg|µg|μg|ug|ng|mg|gm|g|ml|l|miu|iu|%)`
	perPattern    = `(?:\s*/\s*(\d+(?:[.,]\d+)*)?\s*(ml|l|kg|gm|g|mg))?`
)

var (
	// Whole parenthetical content, e.g. "500 mg", "125mg/5ml", "1% w/w".
	dosageRegex = regexp.MustCompile(`^` + numberPattern + `\s*` + unitPattern + perPattern + `\s*(?:w/v|w/w|v/v)?$`)

	// Dosage written after the name without parentheses, e.g. "Zinc 20mg".
	trailingDosageRegex = regexp.MustCompile(`^(.*\S)\s+` + numberPattern + `\s*` + unitPattern + perPattern + `$`)

	thousandsRegex = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
)

// ParseDosage parses a strength such as "500mg", "(0.5 g)" or "250mg/5ml".
// ok is false when the text is not a recognizable dosage.
func ParseDosage(text string) (Dosage, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "("), ")"))
	m := dosageRegex.FindStringSubmatch(s)
	if m == nil {
		return Dosage{}, false
	}
	return buildDosage(m[1], m[2], m[3], m[4])
}

func buildDosage(number, unit, perNumber, perUnit string) (Dosage, bool) {
	value, ok := parseNumber(number)
	if !ok {
		return Dosage{}, false
	}
	info, ok := amountUnits[unit]
	if !ok {
		return Dosage{}, false
	}

	d := Dosage{Value: round6(value * info.factor), Unit: info.base}
	if perUnit == "" {
		return d, true
	}

	pinfo, ok := perUnits[perUnit]
	if !ok {
		return Dosage{}, false
	}
	per := 1.0
	if perNumber != "" {
		if per, ok = parseNumber(perNumber); !ok || per == 0 {
			return Dosage{}, false
		}
	}
	d.Per = round6(per * pinfo.factor)
	d.PerUnit = pinfo.base
	return d, true
}

// parseNumber accepts "2.5", "2,5" (decimal comma) and "1,000" (thousands).
func parseNumber(s string) (float64, bool) {
	if thousandsRegex.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	if strings.Count(s, ".") > 1 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(round6(v), 'f', -1, 64)
}

// Family identifies what a dosage can be compared against.
func (d Dosage) Family() string {
	if d.PerUnit == "" {
		return d.Unit
	}
	return d.Unit + "/" + d.PerUnit
}

// String renders the canonical form, which ParseDosage reads back unchanged.
func (d Dosage) String() string {
	s := formatNumber(d.Value) + d.Unit
	if d.PerUnit == "" {
		return s
	}
	if d.Per == 1 {
		return s + "/" + d.PerUnit
	}
	return s + "/" + formatNumber(d.Per) + d.PerUnit
}

// Equal reports whether both dosages denote the same strength.
func (d Dosage) Equal(other Dosage) bool {
	return d.String() == other.String()
}

// Less orders dosages by family, then strength.
func (d Dosage) Less(other Dosage) bool {
	if d.Family() != other.Family() {
		return d.Family() < other.Family()
	}
	if d.Value != other.Value {
		return d.Value < other.Value
	}
	return d.Per < other.Per
}
