package models

import (
	"sort"
	"strings"
	"time"
)

// Run is one archived benchmark run together with the test metadata it declared
type Run struct {
	ID           string           `json:"id"`
	Name         string           `json:"name" validate:"required,max=200"`
	Environment  string           `json:"environment" validate:"max=200"`
	UploadedAt   time.Time        `json:"uploaded_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	TestMetadata []TestDefinition `json:"test_metadata" validate:"required,min=1,dive"`
}

// RunSummary is the listing view of a run
type RunSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Environment string     `json:"environment"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	TestCount   int        `json:"test_count"`
	Frameworks  []string   `json:"frameworks"`
}

// Summary returns the listing view of the run
func (r *Run) Summary() RunSummary {
	return RunSummary{
		ID:          r.ID,
		Name:        r.Name,
		Environment: r.Environment,
		UploadedAt:  r.UploadedAt,
		CompletedAt: r.CompletedAt,
		TestCount:   len(r.TestMetadata),
		Frameworks:  r.Frameworks(),
	}
}

// Frameworks returns the distinct framework names in the run, sorted
func (r *Run) Frameworks() []string {
	seen := make(map[string]bool)
	frameworks := []string{}
	for _, t := range r.TestMetadata {
		fw := strings.TrimSpace(t.Framework)
		if fw == "" || seen[fw] {
			continue
		}
		seen[fw] = true
		frameworks = append(frameworks, fw)
	}
	sort.Strings(frameworks)
	return frameworks
}
