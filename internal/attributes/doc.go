// Package attributes keeps the attribute lookup of benchmark tests in step with
// the tests declared by each new run.
//
// The lookup stores one append-only dictionary per attribute category and one
// minified record per test identity. A reconciliation pass expands the stored
// records, merges the run's attribute values into the dictionaries, assigns
// identities to the run's tests and re-encodes them:
//
//	stored lookup -> Unminify -> ReconcileDictionaries / MatchIdentities -> MinifyTests -> new lookup
//
// Every function here is pure: inputs are never modified, nothing is logged and
// no I/O happens, so independent calls may run concurrently.
package attributes
