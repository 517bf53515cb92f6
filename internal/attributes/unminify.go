package attributes

import (
	"strconv"

	"github.com/ternarybob/benchdash/internal/models"
)

// Unminify expands every minified test of the lookup into a full test
// definition keyed by identity.
//
// Indices that are missing, malformed or out of range resolve to "" since the
// lookup file may be hand-edited or partially stale. Resolved values are
// returned without their unused marker. Records whose key is not a positive
// integer fall back to their id field and are skipped when that is unset too.
func Unminify(lookup models.AttributeLookup) map[int]models.TestDefinition {
	identities := make(map[int]models.MinifiedTestDefinition, len(lookup.MinifiedTests))
	for key, minified := range lookup.MinifiedTests {
		id, ok := parseIdentity(key)
		if !ok {
			if minified.ID <= 0 {
				continue
			}
			id = minified.ID
		}
		identities[id] = minified
	}

	tests := make(map[int]models.TestDefinition, len(identities))
	for id, minified := range identities {
		var test models.TestDefinition
		for _, c := range models.AllCategories {
			stored := minified.Get(c)
			if c.IsLiteral() {
				test.Set(c, stored)
				continue
			}
			test.Set(c, resolveIndex(lookup.Attributes, c, stored))
		}

		if len(minified.Versus) > 0 {
			if target, ok := identities[minified.Versus[0]]; ok {
				test.Versus = target.Name
			}
		}
		tests[id] = test
	}

	return tests
}

// resolveIndex maps a stored decimal index to its dictionary value
func resolveIndex(dicts map[models.AttributeCategory]models.AttributeDictionary, c models.AttributeCategory, stored string) string {
	if stored == "" {
		return ""
	}
	dict, ok := dicts[c]
	if !ok {
		return ""
	}
	index, err := strconv.Atoi(stored)
	if err != nil {
		return ""
	}
	return models.StripUnused(dict.Value(index))
}

func parseIdentity(key string) (int, bool) {
	id, err := strconv.Atoi(key)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
