package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/renameio/v2"
)

// ExcludedItems is the exclude file: listings the user does not want to see
// again.
type ExcludedItems struct {
	Items []*ExcludedItem
}

type ExcludedItem struct {
	Key          string
	URL          string
	Organization string
	ExcludedAt   time.Time
}

// GetExcludedFromFile reads an exclude file. A missing or empty file is an
// empty list.
func GetExcludedFromFile(path string) (*ExcludedItems, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &ExcludedItems{}, nil
	}
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return &ExcludedItems{}, nil
	}

	var excluded ExcludedItems
	if err := json.Unmarshal(data, &excluded); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &excluded, nil
}

// Append adds items whose key is not present yet.
func (v *ExcludedItems) Append(s *ExcludedItems) {
	known := make(map[string]struct{}, len(v.Items))
	for _, item := range v.Items {
		known[item.Key] = struct{}{}
	}
	for _, item := range s.Items {
		if _, ok := known[item.Key]; ok {
			continue
		}
		known[item.Key] = struct{}{}
		v.Items = append(v.Items, item)
	}
}

func (v *ExcludedItems) Keys() []string {
	keys := make([]string, 0, len(v.Items))
	for _, item := range v.Items {
		keys = append(keys, item.Key)
	}
	return keys
}

// ToFile replaces the exclude file atomically.
func (v *ExcludedItems) ToFile(path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, append(data, '\n'), 0o644)
}
