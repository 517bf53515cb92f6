package results

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/benchdash/internal/models"
)

// metadataEnvelope is the object form of a run's metadata file
type metadataEnvelope struct {
	TestMetadata      []models.TestDefinition `json:"testMetadata"`
	TestMetadataSnake []models.TestDefinition `json:"test_metadata"`
}

// ParseMetadata decodes the test metadata bundled with a run. Both a bare JSON
// array of tests and an object carrying a testMetadata array are accepted.
func ParseMetadata(data []byte) ([]models.TestDefinition, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: metadata is empty", ErrInvalidRun)
	}

	if trimmed[0] == '[' {
		var tests []models.TestDefinition
		if err := json.Unmarshal(trimmed, &tests); err != nil {
			return nil, fmt.Errorf("%w: failed to parse test metadata: %v", ErrInvalidRun, err)
		}
		return tests, nil
	}

	var envelope metadataEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("%w: failed to parse test metadata: %v", ErrInvalidRun, err)
	}
	if len(envelope.TestMetadata) > 0 {
		return envelope.TestMetadata, nil
	}
	return envelope.TestMetadataSnake, nil
}
