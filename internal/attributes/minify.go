package attributes

import (
	"strconv"

	"github.com/ternarybob/benchdash/internal/models"
)

// MinifyTests encodes identity-assigned tests against the given dictionaries.
//
// NAME keeps its literal value. Every other category becomes the decimal index
// of its value in the dictionary (ASCII case-insensitive, unused marker
// ignored), or "" when the value is empty or unknown. Versus points at the
// first test of the batch, by ascending identity, whose framework or name
// equals the source's versus value.
func MinifyTests(dicts map[models.AttributeCategory]models.AttributeDictionary, tests map[int]models.TestDefinition) map[string]models.MinifiedTestDefinition {
	indexes := make(map[models.AttributeCategory]map[string]int, len(dicts))
	for c, dict := range dicts {
		indexes[c] = indexDictionary(dict)
	}

	ids := sortedIdentities(tests)
	out := make(map[string]models.MinifiedTestDefinition, len(tests))

	for _, id := range ids {
		test := tests[id]
		minified := models.MinifiedTestDefinition{
			ID:     id,
			Versus: []int{},
		}

		for _, c := range models.AllCategories {
			value := test.Get(c)
			if c.IsLiteral() {
				minified.Set(c, value)
				continue
			}
			minified.Set(c, lookupIndex(indexes[c], value))
		}

		if target, ok := findVersus(tests, ids, test.Versus); ok {
			minified.Versus = []int{target}
		}

		out[strconv.Itoa(id)] = minified
	}

	return out
}

// indexDictionary maps each folded bare value to its first position
func indexDictionary(dict models.AttributeDictionary) map[string]int {
	index := make(map[string]int, len(dict.Values))
	for i, v := range dict.Values {
		key := lowerASCII(models.StripUnused(v))
		if key == "" {
			continue
		}
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	return index
}

func lookupIndex(index map[string]int, value string) string {
	if value == "" {
		return ""
	}
	i, ok := index[lowerASCII(value)]
	if !ok {
		return ""
	}
	return strconv.Itoa(i)
}

func findVersus(tests map[int]models.TestDefinition, ids []int, versus string) (int, bool) {
	if versus == "" {
		return 0, false
	}
	for _, id := range ids {
		candidate := tests[id]
		if equalFold(candidate.Framework, versus) || equalFold(candidate.Name, versus) {
			return id, true
		}
	}
	return 0, false
}
