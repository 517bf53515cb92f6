package attributes

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/benchdash/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// dict builds a dictionary for the category
func dict(c models.AttributeCategory, version int, values ...string) models.AttributeDictionary {
	return models.AttributeDictionary{Code: c.Code(), Values: values, Version: version}
}

// sampleLookup returns a small, fully consistent lookup
func sampleLookup() models.AttributeLookup {
	return models.AttributeLookup{
		Attributes: map[models.AttributeCategory]models.AttributeDictionary{
			models.CategoryFramework: dict(models.CategoryFramework, 1, "gemini", "express"),
			models.CategoryLanguage:  dict(models.CategoryLanguage, 1, "Java", "JavaScript"),
			models.CategoryDatabase:  dict(models.CategoryDatabase, 2, "MySQL", "Postgres"),
		},
		MinifiedTests: map[string]models.MinifiedTestDefinition{
			"1": {Framework: "0", Language: "0", Database: "0", Name: "gemini-mysql", ID: 1, Versus: []int{}},
			"2": {Framework: "1", Language: "1", Database: "1", Name: "express-postgres", ID: 2, Versus: []int{1}},
		},
	}
}

func TestReconcile_WorkedExample(t *testing.T) {
	old := models.AttributeLookup{
		Attributes: map[models.AttributeCategory]models.AttributeDictionary{
			models.CategoryFramework: dict(models.CategoryFramework, 3, "gemini", "express"),
		},
		MinifiedTests: map[string]models.MinifiedTestDefinition{
			"5": {Framework: "0", Name: "gemini-mysql", ID: 5},
		},
	}
	run := []models.TestDefinition{
		{Framework: "Gemini", Name: "gemini-mysql"},
		{Framework: "fastify", Name: "fastify-postgres"},
	}

	next := Reconcile(old, run)

	fw := next.Attributes[models.CategoryFramework]
	assert.Equal(t, []string{"gemini", "-express", "fastify"}, fw.Values)
	assert.Equal(t, "fw", fw.Code)
	assert.Equal(t, 3, fw.Version)

	require.Len(t, next.MinifiedTests, 2)
	reused, ok := next.MinifiedTests["5"]
	require.True(t, ok, "identity 5 should be reused")
	assert.Equal(t, "0", reused.Framework)
	assert.Equal(t, "gemini-mysql", reused.Name)

	minted, ok := next.MinifiedTests["6"]
	require.True(t, ok, "a fresh identity should follow the previous maximum")
	assert.Equal(t, "2", minted.Framework)
	assert.Equal(t, "fastify-postgres", minted.Name)
	assert.Equal(t, 6, minted.ID)

	// The input lookup is left as it was
	assert.Equal(t, []string{"gemini", "express"}, old.Attributes[models.CategoryFramework].Values)
}

func TestReconcileDictionaries_AppendOnly(t *testing.T) {
	old := map[models.AttributeCategory]models.AttributeDictionary{
		models.CategoryLanguage: dict(models.CategoryLanguage, 1, "Go", "-Rust", "Java", "Python"),
	}
	run := []models.TestDefinition{
		{Language: "python"},
		{Language: "Kotlin"},
		{Language: "GO"},
		{Language: "kotlin"},
		{Language: "Zig"},
	}

	next := ReconcileDictionaries(old, run)
	before := old[models.CategoryLanguage].Values
	after := next[models.CategoryLanguage].Values

	require.GreaterOrEqual(t, len(after), len(before))
	for i, v := range before {
		assert.Equal(t, models.StripUnused(v), models.StripUnused(after[i]), "index %d moved", i)
	}
	assert.Equal(t, []string{"Go", "-Rust", "-Java", "Python", "Kotlin", "Zig"}, after)
}

func TestReconcileDictionaries_UnusedValueIsNotUnmarked(t *testing.T) {
	old := map[models.AttributeCategory]models.AttributeDictionary{
		models.CategoryFramework: dict(models.CategoryFramework, 1, "-express", "gemini"),
	}
	run := []models.TestDefinition{{Framework: "Express"}}

	next := ReconcileDictionaries(old, run)

	assert.Equal(t, []string{"-express", "-gemini"}, next[models.CategoryFramework].Values)
}

func TestReconcileDictionaries_MissingCategories(t *testing.T) {
	run := []models.TestDefinition{{Name: "t1", Webserver: "nginx"}}

	next := ReconcileDictionaries(nil, run)

	ws, ok := next[models.CategoryWebserver]
	require.True(t, ok)
	assert.Equal(t, "ws", ws.Code)
	assert.Equal(t, 0, ws.Version)
	assert.Equal(t, []string{"nginx"}, ws.Values)

	_, ok = next[models.CategoryName]
	assert.False(t, ok, "NAME is stored literally and gets no dictionary")
	_, ok = next[models.CategoryOS]
	assert.False(t, ok, "categories without values get no dictionary")
}

func TestReconcileDictionaries_HandAddedNameDictionaryUnchanged(t *testing.T) {
	old := map[models.AttributeCategory]models.AttributeDictionary{
		models.CategoryName: dict(models.CategoryName, 2, "-x"),
	}
	run := []models.TestDefinition{{Name: "gin"}, {Name: "echo"}}

	next := ReconcileDictionaries(old, run)

	assert.Equal(t, old[models.CategoryName], next[models.CategoryName])
	assert.Equal(t, []string{"-x"}, next[models.CategoryName].Values)
}

func TestReconcileDictionaries_ASCIIFoldingOnly(t *testing.T) {
	old := map[models.AttributeCategory]models.AttributeDictionary{
		models.CategoryPlatform: dict(models.CategoryPlatform, 1, "Ärger"),
	}
	run := []models.TestDefinition{{Platform: "ärger"}}

	next := ReconcileDictionaries(old, run)

	// Non-ASCII letters are compared byte for byte
	assert.Equal(t, []string{"-Ärger", "ärger"}, next[models.CategoryPlatform].Values)

	// ASCII letters still fold around them
	next = ReconcileDictionaries(old, []models.TestDefinition{{Platform: "ÄRGER"}})
	assert.Equal(t, []string{"Ärger"}, next[models.CategoryPlatform].Values)
}

func TestMatchIdentities_PreservesMatches(t *testing.T) {
	previous := map[int]models.TestDefinition{
		3: {Name: "servlet", Framework: "servlet", Language: "Java"},
		7: {Name: "gin", Framework: "gin", Language: "Go", Approach: "Realistic"},
	}
	run := []models.TestDefinition{
		{Name: "GIN", Framework: "gin", Language: "Go"},
		{Name: "servlet-renamed", Framework: "Servlet", Language: "java"},
	}

	assigned := MatchIdentities(previous, run)

	require.Len(t, assigned, 2)
	assert.Equal(t, "GIN", assigned[7].Name)
	assert.Equal(t, "servlet-renamed", assigned[3].Name, "matching full tuple keeps identity despite rename")
}

func TestMatchIdentities_IgnoresOSAndDisplayName(t *testing.T) {
	previous := map[int]models.TestDefinition{
		1: {Name: "a", Framework: "fw", OS: "Linux", DatabaseOS: "Linux", DisplayName: "A"},
	}
	run := []models.TestDefinition{
		{Name: "b", Framework: "fw", OS: "Windows", DatabaseOS: "Windows", DisplayName: "B"},
	}

	assigned := MatchIdentities(previous, run)

	_, ok := assigned[1]
	assert.True(t, ok)
}

func TestMatchIdentities_FreshIdentities(t *testing.T) {
	previous := map[int]models.TestDefinition{
		3: {Name: "a", Framework: "a"},
		7: {Name: "b", Framework: "b"},
	}
	run := []models.TestDefinition{
		{Name: "x", Framework: "x"},
		{Name: "y", Framework: "y"},
		{Name: "z", Framework: "z"},
	}

	assigned := MatchIdentities(previous, run)

	assert.Equal(t, "x", assigned[8].Name)
	assert.Equal(t, "y", assigned[9].Name)
	assert.Equal(t, "z", assigned[10].Name)
}

func TestMatchIdentities_EmptyHistoryStartsAtOne(t *testing.T) {
	assigned := MatchIdentities(nil, []models.TestDefinition{{Name: "first"}})

	assert.Equal(t, "first", assigned[1].Name)
}

func TestMatchIdentities_LaterCollisionGetsFreshIdentity(t *testing.T) {
	previous := map[int]models.TestDefinition{
		4: {Name: "aspnet", Framework: "aspnet"},
	}
	run := []models.TestDefinition{
		{Name: "aspnet", Framework: "aspnet", Database: "MySQL"},
		{Name: "ASPNET", Framework: "aspnet", Database: "Postgres"},
	}

	assigned := MatchIdentities(previous, run)

	require.Len(t, assigned, 2)
	assert.Equal(t, "MySQL", assigned[4].Database, "first claimant keeps the identity")
	assert.Equal(t, "Postgres", assigned[5].Database)
}

func TestMinifyTests_Versus(t *testing.T) {
	dicts := map[models.AttributeCategory]models.AttributeDictionary{
		models.CategoryFramework: dict(models.CategoryFramework, 1, "servlet", "-spring"),
	}
	tests := map[int]models.TestDefinition{
		2: {Name: "spring", Framework: "Spring", Versus: "SERVLET"},
		9: {Name: "servlet-raw", Framework: "servlet", Versus: "nothing-matches"},
		4: {Name: "servlet", Framework: "servlet", Versus: ""},
	}

	minified := MinifyTests(dicts, tests)

	assert.Equal(t, []int{4}, minified["2"].Versus, "first match by ascending identity")
	assert.Equal(t, "1", minified["2"].Framework, "unused marker ignored while indexing")
	assert.Equal(t, []int{}, minified["9"].Versus)
	assert.Equal(t, []int{}, minified["4"].Versus)
	assert.Equal(t, "", minified["4"].Language, "missing dictionary resolves to empty")
}

func TestUnminify_ToleratesStaleData(t *testing.T) {
	lookup := models.AttributeLookup{
		Attributes: map[models.AttributeCategory]models.AttributeDictionary{
			models.CategoryFramework: dict(models.CategoryFramework, 1, "gemini", "-express"),
		},
		MinifiedTests: map[string]models.MinifiedTestDefinition{
			"1":     {Framework: "9", Name: "out-of-range", Versus: []int{42}},
			"2":     {Framework: "x", Language: "0", Name: "garbage-index"},
			"3":     {Framework: "1", Name: "unused-value", Versus: []int{1}},
			"abc":   {Framework: "0", Name: "key-falls-back-to-id", ID: 12},
			"bogus": {Framework: "0", Name: "skipped"},
		},
	}

	tests := Unminify(lookup)

	require.Len(t, tests, 4)
	assert.Equal(t, "", tests[1].Framework)
	assert.Equal(t, "", tests[1].Versus, "unresolved versus reference")
	assert.Equal(t, "", tests[2].Framework)
	assert.Equal(t, "", tests[2].Language)
	assert.Equal(t, "express", tests[3].Framework)
	assert.Equal(t, "out-of-range", tests[3].Versus)
	assert.Equal(t, "gemini", tests[12].Framework)
	assert.Equal(t, "", tests[3].Notes)
	assert.Equal(t, "", tests[3].DisplayName)
}

func TestRoundTrip(t *testing.T) {
	dicts := sampleLookup().Attributes
	tests := map[int]models.TestDefinition{
		10: {Name: "a", Framework: "GEMINI", Language: "java", Database: "MySQL"},
		11: {Name: "b", Framework: "express", Language: "JavaScript", Database: "postgres"},
	}

	back := Unminify(models.AttributeLookup{Attributes: dicts, MinifiedTests: MinifyTests(dicts, tests)})

	require.Len(t, back, 2)
	for id, original := range tests {
		for _, c := range models.AllCategories {
			assert.True(t, equalFold(original.Get(c), back[id].Get(c)), "identity %d category %s", id, c)
		}
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	old := sampleLookup()
	previous := Unminify(old)

	run := make([]models.TestDefinition, 0, len(previous))
	for _, id := range sortedIdentities(previous) {
		run = append(run, previous[id])
	}

	next := Reconcile(old, run)

	if diff := cmp.Diff(old, next, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("reconciling a lookup with its own tests changed it (-old +new):\n%s", diff)
	}

	report := Summarize(old, next)
	assert.False(t, report.Changed())
	assert.Equal(t, []int{1, 2}, report.ReusedIdentities)
}

func TestSummarize(t *testing.T) {
	old := sampleLookup()
	run := []models.TestDefinition{
		{Name: "gemini-mysql", Framework: "gemini", Language: "Java", Database: "MySQL"},
		{Name: "hono", Framework: "hono", Language: "TypeScript", Database: "MySQL"},
	}

	report := Summarize(old, Reconcile(old, run))

	assert.True(t, report.Changed())
	assert.Equal(t, []string{"hono"}, report.Appended[models.CategoryFramework])
	assert.Equal(t, []string{"TypeScript"}, report.Appended[models.CategoryLanguage])
	assert.Equal(t, []string{"express"}, report.NewlyUnused[models.CategoryFramework])
	assert.Equal(t, []string{"JavaScript"}, report.NewlyUnused[models.CategoryLanguage])
	assert.Equal(t, []string{"Postgres"}, report.NewlyUnused[models.CategoryDatabase])
	assert.Equal(t, []int{1}, report.ReusedIdentities)
	assert.Equal(t, []int{3}, report.MintedIdentities)
	assert.Equal(t, []int{2}, report.RetiredIdentities)
	assert.Equal(t, 2, report.AppendedCount())
	assert.Equal(t, 3, report.NewlyUnusedCount())
}

func TestReconcile_ConcurrentCallsShareNothing(t *testing.T) {
	old := sampleLookup()
	snapshot := old.Clone()
	run := []models.TestDefinition{
		{Name: "gemini-mysql", Framework: "Gemini", Language: "Java", Database: "MySQL"},
		{Name: "fastify", Framework: "fastify", Language: "JavaScript", Database: "Postgres", Versus: "express"},
	}
	expected := Reconcile(old, run)

	results := make([]models.AttributeLookup, 16)
	g, _ := errgroup.WithContext(context.Background())
	for i := range results {
		g.Go(func() error {
			results[i] = Reconcile(old, run)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i, got := range results {
		if diff := cmp.Diff(expected, got); diff != "" {
			t.Errorf("result %d differs (-want +got):\n%s", i, diff)
		}
	}
	if diff := cmp.Diff(snapshot, old); diff != "" {
		t.Errorf("input lookup was mutated (-before +after):\n%s", diff)
	}
}

func TestEqualFold(t *testing.T) {
	assert.True(t, equalFold("MySQL", "mysql"))
	assert.True(t, equalFold("", ""))
	assert.False(t, equalFold("mysql", "mysql "))
	assert.False(t, equalFold("Ä", "ä"))
	assert.Equal(t, "abc-Ä", lowerASCII("ABC-Ä"))
	assert.Equal(t, "already", lowerASCII("already"))
}
