// -----------------------------------------------------------------------
// Last Modified: Tuesday, 13th October 2026 9:12:40 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AttributeCategory is one classification axis of a benchmarked test.
// The set is closed; every switch over it must handle all members.
type AttributeCategory int

const (
	CategoryApproach AttributeCategory = iota
	CategoryClassification
	CategoryDatabase
	CategoryDatabaseOS
	CategoryFramework
	CategoryLanguage
	CategoryName
	CategoryORM
	CategoryOS
	CategoryPlatform
	CategoryDisplayName
	CategoryWebserver
)

// AllCategories lists every category in declaration order
var AllCategories = []AttributeCategory{
	CategoryApproach,
	CategoryClassification,
	CategoryDatabase,
	CategoryDatabaseOS,
	CategoryFramework,
	CategoryLanguage,
	CategoryName,
	CategoryORM,
	CategoryOS,
	CategoryPlatform,
	CategoryDisplayName,
	CategoryWebserver,
}

// UnusedMarker prefixes dictionary values that were absent from the most recent run
const UnusedMarker = "-"

// Code returns the two-letter code used for the category in the lookup file
func (c AttributeCategory) Code() string {
	switch c {
	case CategoryApproach:
		return "ap"
	case CategoryClassification:
		return "cl"
	case CategoryDatabase:
		return "db"
	case CategoryDatabaseOS:
		return "do"
	case CategoryFramework:
		return "fw"
	case CategoryLanguage:
		return "la"
	case CategoryName:
		return "nm"
	case CategoryORM:
		return "or"
	case CategoryOS:
		return "os"
	case CategoryPlatform:
		return "pl"
	case CategoryDisplayName:
		return "dn"
	case CategoryWebserver:
		return "ws"
	}
	return ""
}

// String returns the upper-case category name
func (c AttributeCategory) String() string {
	switch c {
	case CategoryApproach:
		return "APPROACH"
	case CategoryClassification:
		return "CLASSIFICATION"
	case CategoryDatabase:
		return "DATABASE"
	case CategoryDatabaseOS:
		return "DATABASE_OS"
	case CategoryFramework:
		return "FRAMEWORK"
	case CategoryLanguage:
		return "LANGUAGE"
	case CategoryName:
		return "NAME"
	case CategoryORM:
		return "ORM"
	case CategoryOS:
		return "OS"
	case CategoryPlatform:
		return "PLATFORM"
	case CategoryDisplayName:
		return "DISPLAY_NAME"
	case CategoryWebserver:
		return "WEBSERVER"
	}
	return fmt.Sprintf("AttributeCategory(%d)", int(c))
}

// IsLiteral reports whether the minified form stores the value itself instead of an index
func (c AttributeCategory) IsLiteral() bool {
	return c == CategoryName
}

// ParseCategoryCode resolves a two-letter code. ok is false for unknown codes.
func ParseCategoryCode(code string) (AttributeCategory, bool) {
	for _, c := range AllCategories {
		if c.Code() == code {
			return c, true
		}
	}
	return 0, false
}

// MarshalText encodes the category as its code so it can key JSON objects
func (c AttributeCategory) MarshalText() ([]byte, error) {
	code := c.Code()
	if code == "" {
		return nil, fmt.Errorf("unknown attribute category %d", int(c))
	}
	return []byte(code), nil
}

// UnmarshalText decodes a category code
func (c *AttributeCategory) UnmarshalText(text []byte) error {
	parsed, ok := ParseCategoryCode(string(text))
	if !ok {
		return fmt.Errorf("unknown attribute category code %q", string(text))
	}
	*c = parsed
	return nil
}

// IsUnused reports whether a stored dictionary value carries the unused marker
func IsUnused(value string) bool {
	return strings.HasPrefix(value, UnusedMarker)
}

// StripUnused returns the value without its unused marker
func StripUnused(value string) string {
	return strings.TrimPrefix(value, UnusedMarker)
}

// MarkUnused prefixes the value with the unused marker unless it already has one
func MarkUnused(value string) string {
	if IsUnused(value) {
		return value
	}
	return UnusedMarker + value
}

// AttributeDictionary is the ordered list of known values for one category.
// Values only ever grow at the end; an existing entry may gain the unused
// marker in place but never moves.
type AttributeDictionary struct {
	Code    string   `json:"code"`
	Values  []string `json:"list"`
	Version int      `json:"v"`
}

// Clone returns a deep copy of the dictionary
func (d AttributeDictionary) Clone() AttributeDictionary {
	values := make([]string, len(d.Values))
	copy(values, d.Values)
	return AttributeDictionary{
		Code:    d.Code,
		Values:  values,
		Version: d.Version,
	}
}

// Value returns the stored value at index, or "" when out of range
func (d AttributeDictionary) Value(index int) string {
	if index < 0 || index >= len(d.Values) {
		return ""
	}
	return d.Values[index]
}

// MarshalJSON writes an empty list instead of null
func (d AttributeDictionary) MarshalJSON() ([]byte, error) {
	type alias AttributeDictionary
	out := alias(d)
	if out.Values == nil {
		out.Values = []string{}
	}
	return json.Marshal(out)
}

// TestDefinition is the human-readable description of one benchmarked test,
// as declared in the metadata file bundled with a run.
type TestDefinition struct {
	Approach       string `json:"approach" yaml:"approach"`
	Classification string `json:"classification" yaml:"classification"`
	Database       string `json:"database" yaml:"database"`
	DatabaseOS     string `json:"database_os" yaml:"database_os"`
	Framework      string `json:"framework" yaml:"framework"`
	Language       string `json:"language" yaml:"language"`
	Name           string `json:"name" yaml:"name" validate:"required"`
	ORM            string `json:"orm" yaml:"orm"`
	OS             string `json:"os" yaml:"os"`
	Platform       string `json:"platform" yaml:"platform"`
	DisplayName    string `json:"display_name" yaml:"display_name"`
	Webserver      string `json:"webserver" yaml:"webserver"`
	Versus         string `json:"versus" yaml:"versus"`
	Notes          string `json:"notes" yaml:"notes"`
}

// Get returns the value of the given category
func (t TestDefinition) Get(c AttributeCategory) string {
	switch c {
	case CategoryApproach:
		return t.Approach
	case CategoryClassification:
		return t.Classification
	case CategoryDatabase:
		return t.Database
	case CategoryDatabaseOS:
		return t.DatabaseOS
	case CategoryFramework:
		return t.Framework
	case CategoryLanguage:
		return t.Language
	case CategoryName:
		return t.Name
	case CategoryORM:
		return t.ORM
	case CategoryOS:
		return t.OS
	case CategoryPlatform:
		return t.Platform
	case CategoryDisplayName:
		return t.DisplayName
	case CategoryWebserver:
		return t.Webserver
	}
	return ""
}

// Set assigns the value of the given category
func (t *TestDefinition) Set(c AttributeCategory, value string) {
	switch c {
	case CategoryApproach:
		t.Approach = value
	case CategoryClassification:
		t.Classification = value
	case CategoryDatabase:
		t.Database = value
	case CategoryDatabaseOS:
		t.DatabaseOS = value
	case CategoryFramework:
		t.Framework = value
	case CategoryLanguage:
		t.Language = value
	case CategoryName:
		t.Name = value
	case CategoryORM:
		t.ORM = value
	case CategoryOS:
		t.OS = value
	case CategoryPlatform:
		t.Platform = value
	case CategoryDisplayName:
		t.DisplayName = value
	case CategoryWebserver:
		t.Webserver = value
	}
}

// MinifiedTestDefinition is the persisted form of a test. Every category except
// NAME holds the decimal index of its value in that category's dictionary.
// Records are always written with every key; keys missing from a hand-edited
// file come back as empty strings on the next save.
type MinifiedTestDefinition struct {
	Approach       string `json:"ap"`
	Classification string `json:"cl"`
	Database       string `json:"db"`
	DatabaseOS     string `json:"do"`
	Framework      string `json:"fw"`
	Language       string `json:"la"`
	Name           string `json:"nm"`
	ORM            string `json:"or"`
	OS             string `json:"os"`
	Platform       string `json:"pl"`
	DisplayName    string `json:"dn"`
	Webserver      string `json:"ws"`
	ID             int    `json:"id"`
	Versus         []int  `json:"v"`
}

// Get returns the stored (minified) value of the given category
func (m MinifiedTestDefinition) Get(c AttributeCategory) string {
	switch c {
	case CategoryApproach:
		return m.Approach
	case CategoryClassification:
		return m.Classification
	case CategoryDatabase:
		return m.Database
	case CategoryDatabaseOS:
		return m.DatabaseOS
	case CategoryFramework:
		return m.Framework
	case CategoryLanguage:
		return m.Language
	case CategoryName:
		return m.Name
	case CategoryORM:
		return m.ORM
	case CategoryOS:
		return m.OS
	case CategoryPlatform:
		return m.Platform
	case CategoryDisplayName:
		return m.DisplayName
	case CategoryWebserver:
		return m.Webserver
	}
	return ""
}

// Set assigns the stored (minified) value of the given category
func (m *MinifiedTestDefinition) Set(c AttributeCategory, value string) {
	switch c {
	case CategoryApproach:
		m.Approach = value
	case CategoryClassification:
		m.Classification = value
	case CategoryDatabase:
		m.Database = value
	case CategoryDatabaseOS:
		m.DatabaseOS = value
	case CategoryFramework:
		m.Framework = value
	case CategoryLanguage:
		m.Language = value
	case CategoryName:
		m.Name = value
	case CategoryORM:
		m.ORM = value
	case CategoryOS:
		m.OS = value
	case CategoryPlatform:
		m.Platform = value
	case CategoryDisplayName:
		m.DisplayName = value
	case CategoryWebserver:
		m.Webserver = value
	}
}

// MarshalJSON writes an empty versus list instead of null
func (m MinifiedTestDefinition) MarshalJSON() ([]byte, error) {
	type alias MinifiedTestDefinition
	out := alias(m)
	if out.Versus == nil {
		out.Versus = []int{}
	}
	return json.Marshal(out)
}

// AttributeLookup is the whole persisted unit: one dictionary per category plus
// every known test keyed by its identity (a positive integer as a decimal string).
type AttributeLookup struct {
	Attributes    map[AttributeCategory]AttributeDictionary `json:"attributes"`
	MinifiedTests map[string]MinifiedTestDefinition         `json:"tests"`
}

// Clone returns a deep copy of the lookup
func (l AttributeLookup) Clone() AttributeLookup {
	out := AttributeLookup{
		Attributes:    make(map[AttributeCategory]AttributeDictionary, len(l.Attributes)),
		MinifiedTests: make(map[string]MinifiedTestDefinition, len(l.MinifiedTests)),
	}
	for c, d := range l.Attributes {
		out.Attributes[c] = d.Clone()
	}
	for id, t := range l.MinifiedTests {
		versus := make([]int, len(t.Versus))
		copy(versus, t.Versus)
		t.Versus = versus
		out.MinifiedTests[id] = t
	}
	return out
}

// MarshalJSON writes empty objects instead of null
func (l AttributeLookup) MarshalJSON() ([]byte, error) {
	type alias AttributeLookup
	out := alias(l)
	if out.Attributes == nil {
		out.Attributes = map[AttributeCategory]AttributeDictionary{}
	}
	if out.MinifiedTests == nil {
		out.MinifiedTests = map[string]MinifiedTestDefinition{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a lookup, skipping dictionaries filed under unknown
// category codes so a hand-edited file with a stray entry still loads.
func (l *AttributeLookup) UnmarshalJSON(data []byte) error {
	var raw struct {
		Attributes    map[string]AttributeDictionary    `json:"attributes"`
		MinifiedTests map[string]MinifiedTestDefinition `json:"tests"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.Attributes = make(map[AttributeCategory]AttributeDictionary, len(raw.Attributes))
	for code, dict := range raw.Attributes {
		c, ok := ParseCategoryCode(code)
		if !ok {
			continue
		}
		l.Attributes[c] = dict
	}

	l.MinifiedTests = raw.MinifiedTests
	if l.MinifiedTests == nil {
		l.MinifiedTests = make(map[string]MinifiedTestDefinition)
	}
	return nil
}

// ParseAttributeLookup decodes the lookup file contents
func ParseAttributeLookup(data []byte) (AttributeLookup, error) {
	var lookup AttributeLookup
	if err := json.Unmarshal(data, &lookup); err != nil {
		return AttributeLookup{}, fmt.Errorf("failed to parse attribute lookup: %w", err)
	}
	return lookup, nil
}
