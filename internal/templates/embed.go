// Package templates embeds starter hierarchy definitions written by
// `lineage init --example`.
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed definitions
var definitions embed.FS

// DefinitionFS returns the embedded definitions directory.
func DefinitionFS() fs.FS {
	sub, err := fs.Sub(definitions, "definitions")
	if err != nil {
		panic(err)
	}
	return sub
}

// Definitions returns the names of the embedded definitions, sorted.
func Definitions() []string {
	entries, err := fs.ReadDir(DefinitionFS(), ".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Definition returns the YAML of the named definition.
func Definition(name string) ([]byte, error) {
	data, err := fs.ReadFile(DefinitionFS(), name+".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown example %q (have %s)", name, strings.Join(Definitions(), ", "))
	}
	return data, nil
}
