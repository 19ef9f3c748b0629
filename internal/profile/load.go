package profile

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

//go:embed schema.json
var schema string

// Result is a loaded profile together with what happened while loading it.
type Result struct {
	Profile     *Profile
	FromVersion int
	Upgraded    bool
	Warnings    []string
}

// SchemaError lists the schema violations of a profile document.
type SchemaError struct {
	Errors []string
}

func (e *SchemaError) Error() string {
	return "profile does not match schema: " + strings.Join(e.Errors, "; ")
}

// Load reads the profile at path, migrates it to the current version and
// validates it. An upgraded document is written back atomically; a failed
// write-back is only a warning.
func Load(path string, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	doc, res, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}

	if res.FromVersion < CurrentVersion {
		if err := writeBack(path, doc); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("could not save upgraded profile: %v", err))
		} else {
			res.Upgraded = true
			logger.Info("profile upgraded",
				zap.String("path", path),
				zap.Int("from", res.FromVersion),
				zap.Int("to", CurrentVersion),
			)
		}
	}

	for _, warning := range res.Warnings {
		logger.Warn(warning, zap.String("path", path))
	}

	return res, nil
}

// Parse migrates and validates a profile document without touching disk.
func Parse(data []byte) (*Result, error) {
	_, res, err := parse(data)
	return res, err
}

func parse(data []byte) (map[string]any, *Result, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decoding profile: %w", err)
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("decoding profile: document is empty")
	}

	from, err := Migrate(doc)
	if err != nil {
		return nil, nil, err
	}

	if err := checkSchema(doc); err != nil {
		return nil, nil, err
	}

	p := &Profile{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  p,
		TagName: "json",
	})
	if err != nil {
		return nil, nil, err
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, nil, fmt.Errorf("decoding profile: %w", err)
	}

	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid profile: %w", err)
	}

	res := &Result{Profile: p, FromVersion: from}
	if err := p.Weights.Validate(); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("invalid scoring weights, using defaults: %v", err))
		p.Weights = DefaultWeights()
	}

	return doc, res, nil
}

func checkSchema(doc map[string]any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("loading profile schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	schemaErr := &SchemaError{}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		schemaErr.Errors = append(schemaErr.Errors, field+": "+desc.Description())
	}
	return schemaErr
}

func writeBack(path string, doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	return renameio.WriteFile(path, append(data, '\n'), perm)
}
