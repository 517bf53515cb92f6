package attributes

import (
	"github.com/ternarybob/benchdash/internal/models"
)

// ReconcileDictionaries merges the attribute values observed in a run into the
// prior dictionaries and returns new dictionaries; old is left untouched.
//
// Values not yet known (ASCII case-insensitive, ignoring the unused marker) are
// appended in the casing first seen. Known values the run did not use gain the
// unused marker. A value that already carries the marker keeps it even when it
// reappears. Code and version carry over. A category missing from old only
// gets a dictionary when the run has values for it. NAME values are stored
// literally, so NAME never gets a dictionary and a hand-added one is carried
// over unchanged.
func ReconcileDictionaries(old map[models.AttributeCategory]models.AttributeDictionary, tests []models.TestDefinition) map[models.AttributeCategory]models.AttributeDictionary {
	out := make(map[models.AttributeCategory]models.AttributeDictionary, len(models.AllCategories))

	for _, c := range models.AllCategories {
		observed := observedValues(c, tests)

		dict, ok := old[c]
		if c.IsLiteral() {
			if ok {
				out[c] = dict.Clone()
			}
			continue
		}
		if !ok {
			if len(observed) == 0 {
				continue
			}
			dict = models.AttributeDictionary{Code: c.Code()}
		}

		out[c] = reconcileDictionary(dict, observed)
	}

	return out
}

// observedValues returns the distinct non-empty values of a category in first-seen order
func observedValues(c models.AttributeCategory, tests []models.TestDefinition) []string {
	seen := make(map[string]bool)
	var values []string
	for _, t := range tests {
		v := t.Get(c)
		if v == "" {
			continue
		}
		key := lowerASCII(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		values = append(values, v)
	}
	return values
}

func reconcileDictionary(dict models.AttributeDictionary, observed []string) models.AttributeDictionary {
	next := dict.Clone()

	inRun := make(map[string]bool, len(observed))
	for _, v := range observed {
		inRun[lowerASCII(v)] = true
	}

	known := make(map[string]bool, len(next.Values))
	for i, v := range next.Values {
		bare := models.StripUnused(v)
		if bare == "" {
			continue
		}
		key := lowerASCII(bare)
		known[key] = true
		if !inRun[key] {
			next.Values[i] = models.MarkUnused(v)
		}
	}

	for _, v := range observed {
		key := lowerASCII(v)
		if known[key] {
			continue
		}
		known[key] = true
		next.Values = append(next.Values, v)
	}

	return next
}
