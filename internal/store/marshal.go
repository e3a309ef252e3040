package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/pdatrace/internal/ir"
)

// marshalContext converts role bindings to JSON TEXT for storage.
// encoding/json sorts map keys, so equal contexts store identical text.
func marshalContext(ctx map[string]ir.PublicKey) (string, error) {
	if len(ctx) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("marshal context: %w", err)
	}
	return string(data), nil
}

// unmarshalContext parses stored context JSON. An empty object yields nil.
func unmarshalContext(data string) (map[string]ir.PublicKey, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var ctx map[string]ir.PublicKey
	if err := json.Unmarshal([]byte(data), &ctx); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	return ctx, nil
}

// marshalSeeds converts seeds to their tagged JSON form.
func marshalSeeds(seeds ir.SeedList) (string, error) {
	data, err := json.Marshal(seeds)
	if err != nil {
		return "", fmt.Errorf("marshal seeds: %w", err)
	}
	return string(data), nil
}

// unmarshalSeeds parses stored seeds. Always returns a non-nil list.
func unmarshalSeeds(data string) (ir.SeedList, error) {
	seeds := ir.SeedList{}
	if data == "" || data == "[]" {
		return seeds, nil
	}
	if err := json.Unmarshal([]byte(data), &seeds); err != nil {
		return nil, fmt.Errorf("unmarshal seeds: %w", err)
	}
	return seeds, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
