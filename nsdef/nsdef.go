// Copyright 2015 The Cockroach Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package nsdef loads namespace/index definitions from YAML, mirroring
// structured/schema.go's Schema: NewYAMLSchema/ToYAML plus a Validate
// pass, generalized from a relational Table/Column schema to a
// namespace's flatter field list and its index definitions. A
// NamespaceDef is a wire/file-friendly stand-in for registry.NamespaceDef
// that a CLI or config file can express in plain YAML before it is
// compiled into the concrete keyval/index types the runtime uses.
package nsdef

import (
	"fmt"
	"sort"

	yaml "gopkg.in/yaml.v2"

	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
	"github.com/kvindex/kvindex/kvxerror"
	"github.com/kvindex/kvindex/registry"
)

// FieldDef is one field of a NamespaceDef, the YAML-friendly
// counterpart of registry.FieldDef.
type FieldDef struct {
	Name      string   `yaml:"name"`
	Kind      string   `yaml:"kind"`
	Array     bool     `yaml:"array,omitempty"`
	JSONPaths []string `yaml:"json_paths,omitempty"`
}

// IndexDef is one index of a NamespaceDef. Kind is one of "hash",
// "tree", "column", "fulltext", "composite"; Collate is one of "",
// "ascii", "numeric", "utf8".
type IndexDef struct {
	Name    string   `yaml:"name"`
	Fields  []string `yaml:"fields"`
	Kind    string   `yaml:"kind"`
	PK      bool     `yaml:"pk,omitempty"`
	Unique  bool     `yaml:"unique,omitempty"`
	Sparse  bool     `yaml:"sparse,omitempty"`
	Dense   bool     `yaml:"dense,omitempty"`
	Collate string   `yaml:"collate,omitempty"`
}

// NamespaceDef is the YAML document form of one namespace's schema and
// indexes, per spec.md §12's carrying-forward of indexdef.h's IndexOpts
// bitset into named, file-friendly flags.
type NamespaceDef struct {
	Namespace string     `yaml:"namespace"`
	Fields    []FieldDef `yaml:"fields"`
	Indexes   []IndexDef `yaml:"indexes,omitempty"`
}

var fieldKinds = map[string]keyval.Type{
	"int32":  keyval.Int32,
	"int64":  keyval.Int64,
	"double": keyval.Double,
	"string": keyval.String,
}

var indexKinds = map[string]index.Kind{
	"hash":      index.KindHash,
	"tree":      index.KindOrdered,
	"column":    index.KindColumn,
	"fulltext":  index.KindFullText,
	"composite": index.KindComposite,
}

var collateModes = map[string]keyval.CollateMode{
	"":        keyval.CollateNone,
	"none":    keyval.CollateNone,
	"ascii":   keyval.CollateASCII,
	"numeric": keyval.CollateNumeric,
	"utf8":    keyval.CollateUTF8,
}

// NewYAML parses a NamespaceDef from YAML, validating it before return,
// mirroring structured/schema.go's NewYAMLSchema.
func NewYAML(in []byte) (*NamespaceDef, error) {
	var d NamespaceDef
	if err := yaml.Unmarshal(in, &d); err != nil {
		return nil, kvxerror.Wrap(err, kvxerror.ParseJSON, "parsing namespace definition YAML")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ToYAML marshals d back into YAML, mirroring Schema.ToYAML.
func (d *NamespaceDef) ToYAML() ([]byte, error) {
	return yaml.Marshal(d)
}

// Validate checks that every field/index kind and reference is
// recognized, mirroring Schema.Validate's role of catching a malformed
// definition before it reaches the runtime.
func (d *NamespaceDef) Validate() error {
	if d.Namespace == "" {
		return kvxerror.Logicf("namespace definition missing a name")
	}
	fieldNames := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return kvxerror.Logicf("namespace %q: field with empty name", d.Namespace)
		}
		if _, ok := fieldKinds[f.Kind]; !ok {
			return kvxerror.Logicf("namespace %q: field %q: unknown kind %q", d.Namespace, f.Name, f.Kind)
		}
		if fieldNames[f.Name] {
			return kvxerror.Logicf("namespace %q: duplicate field %q", d.Namespace, f.Name)
		}
		fieldNames[f.Name] = true
	}
	for _, idx := range d.Indexes {
		if idx.Name == "" {
			return kvxerror.Logicf("namespace %q: index with empty name", d.Namespace)
		}
		if _, ok := indexKinds[idx.Kind]; !ok {
			return kvxerror.Logicf("namespace %q: index %q: unknown kind %q", d.Namespace, idx.Name, idx.Kind)
		}
		if _, ok := collateModes[idx.Collate]; !ok {
			return kvxerror.Logicf("namespace %q: index %q: unknown collate %q", d.Namespace, idx.Name, idx.Collate)
		}
		if len(idx.Fields) == 0 {
			return kvxerror.Logicf("namespace %q: index %q: no fields", d.Namespace, idx.Name)
		}
		for _, f := range idx.Fields {
			if !fieldNames[f] {
				return kvxerror.Logicf("namespace %q: index %q: unknown field %q", d.Namespace, idx.Name, f)
			}
		}
	}
	return nil
}

// Compile converts d into the registry.NamespaceDef the runtime
// consumes, resolving string kind/collate names into their concrete
// keyval/index constants.
func (d *NamespaceDef) Compile() (registry.NamespaceDef, error) {
	if err := d.Validate(); err != nil {
		return registry.NamespaceDef{}, err
	}

	out := registry.NamespaceDef{Name: d.Namespace}
	for _, f := range d.Fields {
		out.Fields = append(out.Fields, registry.FieldDef{
			Name:      f.Name,
			Kind:      fieldKinds[f.Kind],
			Array:     f.Array,
			JSONPaths: f.JSONPaths,
		})
	}
	fieldKind := make(map[string]keyval.Type, len(d.Fields))
	for _, f := range d.Fields {
		fieldKind[f.Name] = fieldKinds[f.Kind]
	}

	for _, idx := range d.Indexes {
		var opts index.Options
		if idx.PK {
			opts |= index.OptPK
		}
		if idx.Unique {
			opts |= index.OptUnique
		}
		if idx.Sparse {
			opts |= index.OptSparse
		}
		if idx.Dense {
			opts |= index.OptDense
		}
		valueType := fieldKind[idx.Fields[0]]
		if len(idx.Fields) > 1 {
			valueType = keyval.Composite
		}
		out.Indexes = append(out.Indexes, registry.IndexDef{
			Name:      idx.Name,
			Fields:    append([]string(nil), idx.Fields...),
			Kind:      indexKinds[idx.Kind],
			Options:   opts,
			ValueType: valueType,
			Collate:   keyval.CollateOpts{Mode: collateModes[idx.Collate]},
		})
	}
	return out, nil
}

// SortedNames returns the field names of d in sorted order, useful for
// deterministic diagnostics output.
func (d *NamespaceDef) SortedNames() []string {
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// String implements fmt.Stringer for diagnostics.
func (d *NamespaceDef) String() string {
	return fmt.Sprintf("namespace %q (%d fields, %d indexes)", d.Namespace, len(d.Fields), len(d.Indexes))
}
