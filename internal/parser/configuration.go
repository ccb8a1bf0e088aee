package parser

import (
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Configuration describes how a snippet is compiled and executed remotely
type Configuration struct {
	Language               string                  `json:"language,omitempty" yaml:"language,omitempty"`
	CompilerID             string                  `json:"compiler_id,omitempty" yaml:"compiler_id,omitempty"`
	CompilationOptions     string                  `json:"compilation_options,omitempty" yaml:"compilation_options,omitempty"`
	Libs                   []Library               `json:"libs,omitempty" yaml:"libs,omitempty"`
	IncludesTransformation []IncludeTransformation `json:"includes_transformation,omitempty" yaml:"includes_transformation,omitempty"`
	AddInDocExecution      *bool                   `json:"add_in_doc_execution,omitempty" yaml:"add_in_doc_execution,omitempty"`
	ExecuteArgs            []string                `json:"execute_parameters_args,omitempty" yaml:"execute_parameters_args,omitempty"`
	ExecuteStdin           string                  `json:"execute_parameters_stdin,omitempty" yaml:"execute_parameters_stdin,omitempty"`
}

// Library is a remote compiler library reference
type Library struct {
	ID      string `json:"id" yaml:"id"`
	Version string `json:"version" yaml:"version"`
}

// IncludeTransformation rewrites Match into Replacement inside include paths.
// It is written as a two-element array: ["csl/", "https://host/csl/"].
type IncludeTransformation struct {
	Match       string
	Replacement string
}

// MarshalJSON writes the pair as a two-element array
func (t IncludeTransformation) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{t.Match, t.Replacement})
}

// UnmarshalJSON reads a two-element array
func (t *IncludeTransformation) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("includes_transformation: %w", err)
	}
	return t.fromPair(pair)
}

// MarshalYAML writes the pair as a two-element sequence
func (t IncludeTransformation) MarshalYAML() (any, error) {
	return []string{t.Match, t.Replacement}, nil
}

// UnmarshalYAML reads a two-element sequence
func (t *IncludeTransformation) UnmarshalYAML(node *yaml.Node) error {
	var pair []string
	if err := node.Decode(&pair); err != nil {
		return fmt.Errorf("includes_transformation: %w", err)
	}
	return t.fromPair(pair)
}

func (t *IncludeTransformation) fromPair(pair []string) error {
	if len(pair) != 2 {
		return fmt.Errorf("includes_transformation: expected [match, replacement], got %d element(s)", len(pair))
	}
	t.Match, t.Replacement = pair[0], pair[1]
	return nil
}

// IsZero reports whether no key is set
func (c *Configuration) IsZero() bool {
	if c == nil {
		return true
	}
	return c.Language == "" &&
		c.CompilerID == "" &&
		c.CompilationOptions == "" &&
		c.Libs == nil &&
		c.IncludesTransformation == nil &&
		c.AddInDocExecution == nil &&
		c.ExecuteArgs == nil &&
		c.ExecuteStdin == ""
}

// Validate checks that a non-empty configuration names a compiler.
// A nil or empty configuration is valid: the snippet is simply not executable.
func (c *Configuration) Validate() error {
	if c.IsZero() {
		return nil
	}
	if c.CompilerID == "" {
		return ErrMissingCompilerID
	}
	return nil
}

// InDocExecution reports the add_in_doc_execution flag, false when absent
func (c *Configuration) InDocExecution() bool {
	return c != nil && c.AddInDocExecution != nil && *c.AddInDocExecution
}

// Clone returns a deep copy
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}
	out := *c
	out.Libs = slices.Clone(c.Libs)
	out.IncludesTransformation = slices.Clone(c.IncludesTransformation)
	out.ExecuteArgs = slices.Clone(c.ExecuteArgs)
	if c.AddInDocExecution != nil {
		v := *c.AddInDocExecution
		out.AddInDocExecution = &v
	}
	return &out
}

// Configuration keys, as written in CE blocks
const (
	keyLanguage               = "language"
	keyCompilerID             = "compiler_id"
	keyCompilationOptions     = "compilation_options"
	keyLibs                   = "libs"
	keyIncludesTransformation = "includes_transformation"
	keyAddInDocExecution      = "add_in_doc_execution"
	keyExecuteArgs            = "execute_parameters_args"
	keyExecuteStdin           = "execute_parameters_stdin"
)

// keySet records which configuration keys an object sets
type keySet map[string]bool

// setKeys returns the keys holding a non-empty value
func (c *Configuration) setKeys() keySet {
	keys := keySet{}
	if c == nil {
		return keys
	}
	keys[keyLanguage] = c.Language != ""
	keys[keyCompilerID] = c.CompilerID != ""
	keys[keyCompilationOptions] = c.CompilationOptions != ""
	keys[keyLibs] = c.Libs != nil
	keys[keyIncludesTransformation] = c.IncludesTransformation != nil
	keys[keyAddInDocExecution] = c.AddInDocExecution != nil
	keys[keyExecuteArgs] = c.ExecuteArgs != nil
	keys[keyExecuteStdin] = c.ExecuteStdin != ""
	return keys
}

// decodeConfiguration reads a JSON object and the keys it names, so that an
// explicit "" still overrides
func decodeConfiguration(data []byte) (*Configuration, keySet, error) {
	var cfg Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}
	keys := cfg.setKeys()
	for k := range raw {
		if _, known := keys[k]; known {
			keys[k] = true
		}
	}
	return &cfg, keys, nil
}

// union adds the keys of other
func (k keySet) union(other keySet) keySet {
	out := keySet{}
	for key, set := range k {
		out[key] = set
	}
	for key, set := range other {
		out[key] = out[key] || set
	}
	return out
}

// Merge returns base with every non-empty key of override replacing it.
// Neither argument is modified. The result is nil only when both are nil.
func Merge(base, override *Configuration) *Configuration {
	return mergeKeys(base, override, override.setKeys())
}

// mergeKeys returns base with the given keys taken from override
func mergeKeys(base, override *Configuration, keys keySet) *Configuration {
	if base == nil && override == nil {
		return nil
	}
	out := base.Clone()
	if out == nil {
		out = &Configuration{}
	}
	if override == nil {
		return out
	}
	o := override.Clone()
	if keys[keyLanguage] {
		out.Language = o.Language
	}
	if keys[keyCompilerID] {
		out.CompilerID = o.CompilerID
	}
	if keys[keyCompilationOptions] {
		out.CompilationOptions = o.CompilationOptions
	}
	if keys[keyLibs] {
		out.Libs = o.Libs
	}
	if keys[keyIncludesTransformation] {
		out.IncludesTransformation = o.IncludesTransformation
	}
	if keys[keyAddInDocExecution] {
		out.AddInDocExecution = o.AddInDocExecution
	}
	if keys[keyExecuteArgs] {
		out.ExecuteArgs = o.ExecuteArgs
	}
	if keys[keyExecuteStdin] {
		out.ExecuteStdin = o.ExecuteStdin
	}
	return out
}
