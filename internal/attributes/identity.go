package attributes

import (
	"sort"

	"github.com/ternarybob/benchdash/internal/models"
)

// matchCategories are compared when names differ. DATABASE_OS, OS and
// DISPLAY_NAME are left out, as the lookup has always done.
// TODO: confirm with the dashboard owners whether OS and DATABASE_OS should join the tuple.
var matchCategories = []models.AttributeCategory{
	models.CategoryApproach,
	models.CategoryClassification,
	models.CategoryDatabase,
	models.CategoryFramework,
	models.CategoryLanguage,
	models.CategoryORM,
	models.CategoryPlatform,
	models.CategoryWebserver,
}

// Matches reports whether two definitions describe the same test: equal names,
// or equal values for every category in the match tuple.
func Matches(a, b models.TestDefinition) bool {
	if equalFold(a.Name, b.Name) {
		return true
	}
	for _, c := range matchCategories {
		if !equalFold(a.Get(c), b.Get(c)) {
			return false
		}
	}
	return true
}

// MatchIdentities assigns an identity to each test of the run.
//
// A test reuses the identity of the first previous test it matches (previous
// tests are scanned in ascending identity order) unless an earlier test of the
// same run already claimed it. Otherwise it gets a fresh identity above every
// previous one.
func MatchIdentities(previous map[int]models.TestDefinition, tests []models.TestDefinition) map[int]models.TestDefinition {
	ids := sortedIdentities(previous)

	next := 1
	if len(ids) > 0 {
		next = ids[len(ids)-1] + 1
	}

	claimed := make(map[int]bool, len(tests))
	assigned := make(map[int]models.TestDefinition, len(tests))

	for _, test := range tests {
		id, ok := firstMatch(previous, ids, test)
		if !ok || claimed[id] {
			id = next
			next++
		}
		claimed[id] = true
		assigned[id] = test
	}

	return assigned
}

func firstMatch(previous map[int]models.TestDefinition, ids []int, test models.TestDefinition) (int, bool) {
	for _, id := range ids {
		if Matches(previous[id], test) {
			return id, true
		}
	}
	return 0, false
}

func sortedIdentities[T any](m map[int]T) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		if id > 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}
