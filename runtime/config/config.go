// Package config loads run-configuration files. A file is YAML (JSON is
// accepted as a subset), checked against an embedded JSON Schema, then
// decoded and overlaid onto an executor.Config.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/opal-lang/pseudo/runtime/executor"
)

// LanguageVersion is the pseudocode dialect this engine implements. A
// config file naming a different major version is rejected.
const LanguageVersion = "v1.2.0"

var (
	// ErrInvalidConfig wraps every schema or decoding failure.
	ErrInvalidConfig = errors.New("invalid run configuration")
	// ErrUnsupportedVersion is returned when languageVersion's major
	// version differs from LanguageVersion.
	ErrUnsupportedVersion = errors.New("unsupported language version")
)

//go:embed schema.json
var schemaJSON string

// File is the decoded form of a run-configuration file. Zero fields leave
// the corresponding executor setting untouched.
type File struct {
	LanguageVersion  string   `yaml:"languageVersion" json:"languageVersion,omitempty"`
	StepLimit        int      `yaml:"stepLimit" json:"stepLimit,omitempty"`
	Timeout          string   `yaml:"timeout" json:"timeout,omitempty"`
	MaxCallDepth     int      `yaml:"maxCallDepth" json:"maxCallDepth,omitempty"`
	MaxOutputEvents  int      `yaml:"maxOutputEvents" json:"maxOutputEvents,omitempty"`
	MaxArrayElements int      `yaml:"maxArrayElements" json:"maxArrayElements,omitempty"`
	OutputJoin       string   `yaml:"outputJoin" json:"outputJoin,omitempty"`
	RandomSeed       uint64   `yaml:"randomSeed" json:"randomSeed,omitempty"`
	Inputs           []string `yaml:"inputs" json:"inputs,omitempty"`
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse validates data against the schema and decodes it.
func Parse(data []byte) (*File, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	instance, err := toJSONValue(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, describe(err))
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if f.LanguageVersion != "" {
		if err := checkVersion(f.LanguageVersion); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// Apply overlays the fields set in f onto c.
func (f *File) Apply(c executor.Config) (executor.Config, error) {
	if f.StepLimit > 0 {
		c.StepLimit = f.StepLimit
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return c, fmt.Errorf("%w: timeout: %v", ErrInvalidConfig, err)
		}
		c.Timeout = d
	}
	if f.MaxCallDepth > 0 {
		c.MaxCallDepth = f.MaxCallDepth
	}
	if f.MaxOutputEvents > 0 {
		c.MaxOutputEvents = f.MaxOutputEvents
	}
	if f.MaxArrayElements > 0 {
		c.MaxArrayElements = f.MaxArrayElements
	}
	if f.OutputJoin != "" {
		mode, err := executor.ParseJoinMode(f.OutputJoin)
		if err != nil {
			return c, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		c.OutputJoin = mode
	}
	if f.RandomSeed != 0 {
		c.RandomSeed = f.RandomSeed
	}
	if len(f.Inputs) > 0 {
		c.Inputs = append(append([]string(nil), f.Inputs...), c.Inputs...)
	}
	return c, nil
}

func checkVersion(v string) error {
	canonical := v
	if !strings.HasPrefix(canonical, "v") {
		canonical = "v" + canonical
	}
	if !semver.IsValid(canonical) {
		return fmt.Errorf("%w: languageVersion %q is not a semantic version", ErrInvalidConfig, v)
	}
	if semver.Major(canonical) != semver.Major(LanguageVersion) {
		return fmt.Errorf("%w: %s (engine implements %s)", ErrUnsupportedVersion, v, LanguageVersion)
	}
	if semver.Compare(canonical, LanguageVersion) > 0 {
		return fmt.Errorf("%w: %s is newer than %s", ErrUnsupportedVersion, v, LanguageVersion)
	}
	return nil
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if compiler.Formats == nil {
		compiler.Formats = make(map[string]func(any) bool)
	}
	for name, validator := range formatValidators() {
		compiler.Formats[name] = validator
	}

	const url = "schema://run-config.json"
	if err := compiler.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
})

func formatValidators() map[string]func(any) bool {
	return map[string]func(any) bool{
		"duration": func(v any) bool {
			s, ok := v.(string)
			if !ok {
				return true // Type validation happens separately
			}
			d, err := time.ParseDuration(s)
			return err == nil && d > 0
		},
		"semver": func(v any) bool {
			s, ok := v.(string)
			if !ok {
				return true
			}
			// semver.IsValid requires the "v" prefix
			if !strings.HasPrefix(s, "v") {
				s = "v" + s
			}
			return semver.IsValid(s)
		},
	}
}

// toJSONValue converts a YAML document into the value shapes the schema
// validator expects.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}

// describe flattens a schema validation error into its leaf causes.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var parts []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			parts = append(parts, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(parts, "; ")
}
