// Package validation guards user input and reports on the quality of a loaded catalog.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/giygas/medfinder-api/index"
	"github.com/giygas/medfinder-api/interfaces"
)

const (
	minInputLength    = 2
	maxInputLength    = 100
	maxInputWords     = 10
	maxReportedNames  = 10
	maxRepeatedLetter = 10
)

// Pre-compiled once and reused for all validations
var (
	// Letters of any script, digits and the punctuation compositions use:
	// "Paracetamol (500mg) + Codeine (30mg)", "Hydrocortisone 1%", "Amox/Clav 500/125"
	inputRegex = regexp.MustCompile(`^[\p{L}\p{M}0-9\s\-\.\+'/,()%]+$`)

	// Substring checks, faster than regex for these
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "eval(", "expression(", "url(", "@import",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "exec(", "execute(",
		// Command injection patterns
		"`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateInput validates user input strings
func (v *DataValidatorImpl) ValidateInput(input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if utf8.RuneCountInString(trimmed) < minInputLength {
		return fmt.Errorf("input too short: minimum %d characters", minInputLength)
	}

	if utf8.RuneCountInString(input) > maxInputLength {
		return fmt.Errorf("input too long: maximum %d characters", maxInputLength)
	}

	// Many short words make composition parsing expensive
	if len(strings.Fields(input)) > maxInputWords {
		return fmt.Errorf("search query too complex: maximum %d words allowed", maxInputWords)
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters. Only letters, numbers, spaces and - . + ' / , ( ) %% are allowed")
	}

	if v.hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateLimit parses a result limit. Empty input yields def; anything
// that is not an integer in [1, max] is rejected.
func (v *DataValidatorImpl) ValidateLimit(input string, def, max int) (int, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("limit must be a number, got: %s", input)
	}

	if limit < 1 || limit > max {
		return 0, fmt.Errorf("limit must be between 1 and %d, got: %d", max, limit)
	}

	return limit, nil
}

// ReportDataQuality summarizes what the index build found
func (v *DataValidatorImpl) ReportDataQuality(idx *index.CatalogIndex) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{DuplicateNames: []string{}}
	if idx == nil {
		return report
	}

	duplicates := idx.DuplicateNames()
	report.DuplicateNameCount = len(duplicates)
	if len(duplicates) > maxReportedNames {
		duplicates = duplicates[:maxReportedNames]
	}
	report.DuplicateNames = append(report.DuplicateNames, duplicates...)

	for _, product := range idx.Products() {
		if product.Price == nil {
			report.ProductsWithoutPrice++
		}
		if strings.TrimSpace(product.RawComposition) == "" {
			report.ProductsWithoutComposition++
		}
	}

	stats := idx.Stats()
	report.DegradedSignatures = stats.DegradedSignatures
	report.ParseWarnings = stats.ParseWarnings
	report.ParseFailures = stats.ParseFailures

	return report
}

// hasExcessiveRepetition flags the same character repeated more than 10 times in a row
func (v *DataValidatorImpl) hasExcessiveRepetition(input string) bool {
	run := 1
	var prev rune
	for i, r := range input {
		if i > 0 && r == prev {
			run++
			if run > maxRepeatedLetter {
				return true
			}
		} else {
			run = 1
		}
		prev = r
	}
	return false
}
