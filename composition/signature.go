package composition

import (
	"slices"
	"strings"
)

// Ingredient is one normalized active ingredient. Unparsed marks the
// placeholder built from a composition nothing could be read from.
type Ingredient struct {
	Name     string  `json:"name"`
	Dosage   *Dosage `json:"dosage,omitempty"`
	Unparsed bool    `json:"unparsed,omitempty"`
}

// DosageText is the canonical dosage, or "" when there is none.
func (i Ingredient) DosageText() string {
	if i.Dosage == nil {
		return ""
	}
	return i.Dosage.String()
}

func (i Ingredient) String() string {
	if i.Dosage == nil {
		return i.Name
	}
	return i.Name + " (" + i.Dosage.String() + ")"
}

// Signature is the sorted, de-duplicated ingredient set of a composition.
// Two compositions are equivalent iff their keys are equal.
type Signature struct {
	Ingredients []Ingredient `json:"ingredients"`
	Key         string       `json:"key"`
}

func newSignature(ingredients []Ingredient) Signature {
	slices.SortFunc(ingredients, func(a, b Ingredient) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.DosageText(), b.DosageText())
	})
	ingredients = slices.CompactFunc(ingredients, func(a, b Ingredient) bool {
		return a.Name == b.Name && a.DosageText() == b.DosageText()
	})

	keys := make([]string, len(ingredients))
	for i, ing := range ingredients {
		if ing.Unparsed {
			keys[i] = "?" + ing.Name
			continue
		}
		keys[i] = ing.Name + "|" + ing.DosageText()
	}

	return Signature{Ingredients: ingredients, Key: strings.Join(keys, ";")}
}

// IsEmpty reports a signature parsed from an empty composition.
func (s Signature) IsEmpty() bool {
	return len(s.Ingredients) == 0
}

// Degraded reports a signature that only holds the unparsed placeholder.
func (s Signature) Degraded() bool {
	return len(s.Ingredients) == 1 && s.Ingredients[0].Unparsed
}

// Equal compares two signatures as sets, dosage included.
func (s Signature) Equal(other Signature) bool {
	return s.Key == other.Key
}

// Names returns the ingredient names in signature order.
func (s Signature) Names() []string {
	names := make([]string, 0, len(s.Ingredients))
	for _, ing := range s.Ingredients {
		if len(names) == 0 || names[len(names)-1] != ing.Name {
			names = append(names, ing.Name)
		}
	}
	return names
}

// String renders the canonical composition, e.g. "caffeine (65mg) + paracetamol (500mg)".
func (s Signature) String() string {
	parts := make([]string, len(s.Ingredients))
	for i, ing := range s.Ingredients {
		parts[i] = ing.String()
	}
	return strings.Join(parts, " + ")
}
