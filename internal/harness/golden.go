package harness

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden-file form of a scenario result. It leaves out
// wall-clock fields so the same scenario always yields identical bytes.
type Snapshot struct {
	Scenario   string            `json:"scenario"`
	ProgramID  string            `json:"program_id"`
	Address    string            `json:"address"`
	Context    map[string]string `json:"context,omitempty"`
	Derived    bool              `json:"derived"`
	Pattern    string            `json:"pattern,omitempty"`
	Family     string            `json:"family,omitempty"`
	Confidence float64           `json:"confidence"`
	Seeds      []string          `json:"seeds"`
	Bump       uint8             `json:"bump"`
	Candidates int               `json:"candidates"`
	Exhausted  bool              `json:"exhausted"`
}

// NewSnapshot captures r.
func NewSnapshot(r *Result) Snapshot {
	m := r.Match
	return Snapshot{
		Scenario:   r.Name,
		ProgramID:  m.ProgramID.String(),
		Address:    m.Address.String(),
		Context:    r.Input.Context,
		Derived:    m.Derived,
		Pattern:    m.Pattern,
		Family:     m.Family,
		Confidence: m.Confidence,
		Seeds:      m.Seeds.Strings(),
		Bump:       m.Bump,
		Candidates: m.Candidates,
		Exhausted:  m.Exhausted,
	}
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
// Struct field order and sorted map keys make the output deterministic.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// GoldenPath returns where the golden file for a scenario file lives:
// a golden/ directory next to it, named after the file.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// UpdateGolden writes data as the golden file at path.
func UpdateGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether data equals the golden file at path.
// exists is false when there is no golden file yet.
func CompareGolden(path string, data []byte) (match, exists bool, err error) {
	golden, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to read golden file: %w", err)
	}
	return bytes.Equal(golden, data), true, nil
}

// RunWithGolden executes a scenario, fails t on any unmet expectation,
// and compares the snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario, a Analyzer) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), s, a)
	if err != nil {
		return nil, err
	}
	for _, e := range result.Errors {
		t.Errorf("%s: %s", s.Name, e)
	}

	data, err := NewSnapshot(result).Marshal()
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, data)
	return result, nil
}
