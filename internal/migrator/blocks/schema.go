package blocks

import (
	"encoding/json"
	"errors"
	"os"
)

var ErrNoSchemas = errors.New("no block schemas found in input")

// Attribute is one block attribute's type descriptor.
type Attribute struct {
	Type    string      `json:"type"`
	Default interface{} `json:"default,omitempty"`
	Source  string      `json:"source,omitempty"`
}

// Variation is a named block variation.
type Variation struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// Style is a named style variant.
type Style struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
}

// Schema is a WordPress block-definition document. Read-only input to the
// transpiler.
type Schema struct {
	Name            string                 `json:"name"`
	Title           string                 `json:"title,omitempty"`
	Description     string                 `json:"description,omitempty"`
	Attributes      map[string]Attribute   `json:"attributes,omitempty"`
	Supports        map[string]interface{} `json:"supports,omitempty"`
	UsesContext     []string               `json:"usesContext,omitempty"`
	ProvidesContext map[string]string      `json:"providesContext,omitempty"`
	Parent          []string               `json:"parent,omitempty"`
	Ancestor        []string               `json:"ancestor,omitempty"`
	Variations      []Variation            `json:"variations,omitempty"`
	Styles          []Style                `json:"styles,omitempty"`
}

// LoadSchemas reads a JSON file holding either a schema array or a
// name-keyed schema map.
func LoadSchemas(path string) ([]Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []Schema
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return list, nil
	}

	var byName map[string]Schema
	if err := json.Unmarshal(data, &byName); err != nil {
		return nil, err
	}

	list = list[:0]
	for name, schema := range byName {
		if schema.Name == "" {
			schema.Name = name
		}
		list = append(list, schema)
	}

	if len(list) == 0 {
		return nil, ErrNoSchemas
	}

	return list, nil
}
