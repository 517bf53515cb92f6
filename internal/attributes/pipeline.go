package attributes

import (
	"sort"
	"strconv"

	"github.com/ternarybob/benchdash/internal/models"
)

// Reconcile produces the lookup that replaces old once the run's tests are
// taken into account. The result holds the reconciled dictionaries and one
// minified record per test of the run; old and tests are not modified.
func Reconcile(old models.AttributeLookup, tests []models.TestDefinition) models.AttributeLookup {
	previous := Unminify(old)
	dicts := ReconcileDictionaries(old.Attributes, tests)
	assigned := MatchIdentities(previous, tests)

	return models.AttributeLookup{
		Attributes:    dicts,
		MinifiedTests: MinifyTests(dicts, assigned),
	}
}

// Report describes what a reconciliation changed
type Report struct {
	Appended          map[models.AttributeCategory][]string `json:"appended"`
	NewlyUnused       map[models.AttributeCategory][]string `json:"newly_unused"`
	ReusedIdentities  []int                                 `json:"reused_identities"`
	MintedIdentities  []int                                 `json:"minted_identities"`
	RetiredIdentities []int                                 `json:"retired_identities"`
}

// AppendedCount returns the number of values added across all dictionaries
func (r Report) AppendedCount() int {
	n := 0
	for _, values := range r.Appended {
		n += len(values)
	}
	return n
}

// NewlyUnusedCount returns the number of values that gained the unused marker
func (r Report) NewlyUnusedCount() int {
	n := 0
	for _, values := range r.NewlyUnused {
		n += len(values)
	}
	return n
}

// Changed reports whether the dictionaries or the identity set differ
func (r Report) Changed() bool {
	return r.AppendedCount() > 0 || r.NewlyUnusedCount() > 0 ||
		len(r.MintedIdentities) > 0 || len(r.RetiredIdentities) > 0
}

// Summarize compares a lookup with its reconciled successor
func Summarize(old, next models.AttributeLookup) Report {
	report := Report{
		Appended:          make(map[models.AttributeCategory][]string),
		NewlyUnused:       make(map[models.AttributeCategory][]string),
		ReusedIdentities:  []int{},
		MintedIdentities:  []int{},
		RetiredIdentities: []int{},
	}

	for _, c := range models.AllCategories {
		before := old.Attributes[c].Values
		after := next.Attributes[c].Values

		for i, v := range after {
			if i >= len(before) {
				report.Appended[c] = append(report.Appended[c], v)
				continue
			}
			if !models.IsUnused(before[i]) && models.IsUnused(v) {
				report.NewlyUnused[c] = append(report.NewlyUnused[c], models.StripUnused(v))
			}
		}
	}

	oldIDs := identitySet(old)
	newIDs := identitySet(next)
	for id := range newIDs {
		if oldIDs[id] {
			report.ReusedIdentities = append(report.ReusedIdentities, id)
		} else {
			report.MintedIdentities = append(report.MintedIdentities, id)
		}
	}
	for id := range oldIDs {
		if !newIDs[id] {
			report.RetiredIdentities = append(report.RetiredIdentities, id)
		}
	}
	sort.Ints(report.ReusedIdentities)
	sort.Ints(report.MintedIdentities)
	sort.Ints(report.RetiredIdentities)

	return report
}

func identitySet(lookup models.AttributeLookup) map[int]bool {
	ids := make(map[int]bool, len(lookup.MinifiedTests))
	for key, t := range lookup.MinifiedTests {
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 {
			id = t.ID
		}
		if id > 0 {
			ids[id] = true
		}
	}
	return ids
}
