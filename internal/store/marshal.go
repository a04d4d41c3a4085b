package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/mutree/internal/treeio"
	"github.com/roach88/mutree/internal/walk"
)

// marshalStrings converts a string list to canonical JSON TEXT. A nil list
// is stored as [].
func marshalStrings(list []string) (string, error) {
	arr := make([]any, len(list))
	for i, v := range list {
		arr[i] = v
	}
	data, err := treeio.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings parses TEXT written by marshalStrings. An empty array
// decodes to nil so steps read back equal to the ones recorded.
func unmarshalStrings(text string) ([]string, error) {
	var list []string
	if err := json.Unmarshal([]byte(text), &list); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list, nil
}

func marshalOptions(opts walk.Options) (string, error) {
	data, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	return string(data), nil
}

func unmarshalOptions(text string) (walk.Options, error) {
	var opts walk.Options
	if err := json.Unmarshal([]byte(text), &opts); err != nil {
		return opts, fmt.Errorf("unmarshal options: %w", err)
	}
	return opts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
