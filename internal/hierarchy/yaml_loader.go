package hierarchy

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefinitionFile is the root structure of a hierarchy YAML file:
//
//	models:
//	  - name: Resource
//	  - name: Article
//	    parents: [Resource]
//	    includes: [Timestamped]
type DefinitionFile struct {
	Models []ModelDef `yaml:"models"`
}

// ModelDef declares one model.
type ModelDef struct {
	Name     string   `yaml:"name"`
	Parents  []string `yaml:"parents"`  // Declared in the same pass, must appear earlier in the file
	Includes []string `yaml:"includes"` // Applied after every model is declared
}

// ParseDefinition decodes a hierarchy definition and checks that every
// model has a name and that no name repeats.
func ParseDefinition(r io.Reader) (*DefinitionFile, error) {
	var file DefinitionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse definition: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Models))
	for i, def := range file.Models {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, fmt.Errorf("model %d: %w", i, ErrInvalidName)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("model %d: %w: %s", i, ErrDuplicateModel, name)
		}
		seen[name] = struct{}{}
	}

	return &file, nil
}

// Apply declares every model in file order, then applies the inclusions.
// It applies all of the file or none of it: names and references are
// checked against h first, and models declared before a failing inclusion
// are retracted again.
func (f *DefinitionFile) Apply(h *Hierarchy) error {
	if err := f.check(h); err != nil {
		return err
	}

	declared := make([]string, 0, len(f.Models))
	for _, def := range f.Models {
		m, err := h.Declare(def.Name, def.Parents...)
		if err != nil {
			rollback(h, declared)
			return err
		}
		declared = append(declared, m.Name())
	}
	for _, def := range f.Models {
		for _, inc := range def.Includes {
			if err := h.Include(def.Name, inc); err != nil {
				rollback(h, declared)
				return fmt.Errorf("model %s: %w", def.Name, err)
			}
		}
	}
	return nil
}

// check verifies that no model is already declared in h and that every
// parent is declared in h or earlier in the file. Include targets may
// appear anywhere in the file.
func (f *DefinitionFile) check(h *Hierarchy) error {
	inFile := make(map[string]struct{}, len(f.Models))
	for _, def := range f.Models {
		inFile[strings.TrimSpace(def.Name)] = struct{}{}
	}
	known := func(name string, earlier map[string]struct{}) bool {
		if _, ok := earlier[name]; ok {
			return true
		}
		_, ok := h.Lookup(name)
		return ok
	}

	earlier := make(map[string]struct{}, len(f.Models))
	for _, def := range f.Models {
		name := strings.TrimSpace(def.Name)
		if _, ok := h.Lookup(name); ok {
			return fmt.Errorf("%w: %s", ErrDuplicateModel, name)
		}
		for _, p := range def.Parents {
			if !known(p, earlier) {
				return fmt.Errorf("declaring %s: %w: %s", name, ErrUnknownModel, p)
			}
		}
		earlier[name] = struct{}{}
	}
	for _, def := range f.Models {
		for _, inc := range def.Includes {
			if !known(inc, inFile) {
				return fmt.Errorf("model %s: %w: %s", def.Name, ErrUnknownModel, inc)
			}
		}
	}
	return nil
}

// rollback retracts names in reverse declaration order.
func rollback(h *Hierarchy, names []string) {
	for i := len(names) - 1; i >= 0; i-- {
		_ = h.Retract(names[i])
	}
}

// Load parses a definition from r and applies it to h.
func Load(h *Hierarchy, r io.Reader) error {
	file, err := ParseDefinition(r)
	if err != nil {
		return err
	}
	return file.Apply(h)
}

// LoadFile parses the definition at path and applies it to h.
func LoadFile(h *Hierarchy, path string) error {
	f, err := os.Open(path) //nolint:gosec // G304: path is a user-supplied definition file
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := Load(h, f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
