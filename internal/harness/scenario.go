package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pdatrace/internal/derive"
	"github.com/roach88/pdatrace/internal/engine"
	"github.com/roach88/pdatrace/internal/ir"
)

// Scenario is one analysis with its expected outcome.
//
// The target is either given literally (Address) or computed first by
// deriving Derive.Seeds under ProgramID, which is how round-trip
// scenarios are written.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// ProgramID owns the target, base58 or hex.
	ProgramID string `yaml:"program_id"`

	// Derive computes the target from seeds. Exclusive with Address.
	Derive *DeriveStep `yaml:"derive,omitempty"`

	// Address is a literal target. Exclusive with Derive.
	Address string `yaml:"address,omitempty"`

	// Context binds roles such as "wallet" to keys for the analysis.
	Context map[string]string `yaml:"context,omitempty"`

	// Expect is checked against the match.
	Expect Expectation `yaml:"expect"`
}

// DeriveStep computes a scenario target.
type DeriveStep struct {
	// Seeds in "kind:value" form.
	Seeds []string `yaml:"seeds"`

	// Bump pins the bump instead of searching for the canonical one.
	Bump *uint8 `yaml:"bump,omitempty"`
}

// Expectation is the expected outcome. Unset optional fields are not
// checked.
type Expectation struct {
	Derived    bool     `yaml:"derived"`
	Pattern    string   `yaml:"pattern,omitempty"`
	Family     string   `yaml:"family,omitempty"`
	Confidence *float64 `yaml:"confidence,omitempty"`
	Bump       *uint8   `yaml:"bump,omitempty"`
	Seeds      []string `yaml:"seeds,omitempty"`
	Exhausted  *bool    `yaml:"exhausted,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if s.ProgramID == "" {
		return errors.New("program_id is required")
	}

	switch {
	case s.Derive == nil && s.Address == "":
		return errors.New("one of derive or address is required")
	case s.Derive != nil && s.Address != "":
		return errors.New("derive and address are mutually exclusive")
	case s.Derive != nil && len(s.Derive.Seeds) == 0:
		return errors.New("derive.seeds must be non-empty")
	}

	e := s.Expect
	if !e.Derived && (e.Pattern != "" || e.Family != "" || e.Bump != nil || len(e.Seeds) > 0) {
		return errors.New("expect: pattern, family, bump and seeds require derived: true")
	}
	if e.Confidence != nil && (*e.Confidence < 0 || *e.Confidence > 1) {
		return fmt.Errorf("expect.confidence %v outside [0, 1]", *e.Confidence)
	}
	return nil
}

// Input resolves the scenario into an analysis request, deriving the
// target first when the scenario asks for it.
func (s *Scenario) Input() (engine.RequestInput, error) {
	in := engine.RequestInput{
		Address:   s.Address,
		ProgramID: s.ProgramID,
		Context:   s.Context,
	}
	if s.Derive == nil {
		return in, nil
	}

	program, err := ir.ParsePublicKey(s.ProgramID)
	if err != nil {
		return in, fmt.Errorf("program_id: %w", err)
	}
	seeds, err := s.Derive.seeds()
	if err != nil {
		return in, err
	}

	var addr ir.PublicKey
	if s.Derive.Bump != nil {
		addr, err = derive.Derive(seeds, *s.Derive.Bump, program)
	} else {
		addr, _, err = derive.FindBump(seeds, program)
	}
	if err != nil {
		return in, fmt.Errorf("derive target: %w", err)
	}
	in.Address = addr.String()
	return in, nil
}

func (d *DeriveStep) seeds() ([]ir.Seed, error) {
	return parseSeeds("derive.seeds", d.Seeds)
}

func parseSeeds(field string, texts []string) ([]ir.Seed, error) {
	seeds := make([]ir.Seed, len(texts))
	for i, text := range texts {
		seed, err := ir.ParseSeed(text)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		seeds[i] = seed
	}
	return seeds, nil
}
