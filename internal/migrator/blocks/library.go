package blocks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
)

// GeneratedComponent is one block's full generated output.
type GeneratedComponent struct {
	Info      ComponentInfo
	Source    string
	Interface string
}

// Library accumulates generated components into origin buckets as each
// block is processed. No cross-block validation happens: duplicate names
// silently co-exist, matching the accumulation-only design.
type Library struct {
	analyzer  *Analyzer
	generator *Generator

	buckets      map[Category][]GeneratedComponent
	categories   map[string]Category
	complexities map[string]Complexity
	dependencies map[string][]string

	logger zerolog.Logger
}

// NewLibrary creates an empty component library.
func NewLibrary(analyzer *Analyzer) *Library {
	if analyzer == nil {
		analyzer = NewAnalyzer()
	}
	return &Library{
		analyzer:     analyzer,
		generator:    NewGenerator(),
		buckets:      make(map[Category][]GeneratedComponent),
		categories:   make(map[string]Category),
		complexities: make(map[string]Complexity),
		dependencies: make(map[string][]string),
		logger:       util.NewLogger(zerolog.InfoLevel),
	}
}

// Add analyzes and generates one schema, filing the result into its origin
// bucket and the accumulated maps.
func (l *Library) Add(schema Schema) (ComponentInfo, error) {
	info := l.analyzer.Analyze(schema)

	source, err := l.generator.Component(schema, info)
	if err != nil {
		return info, fmt.Errorf("generate component %s: %w", schema.Name, err)
	}

	iface, err := l.generator.Interface(schema, info)
	if err != nil {
		return info, fmt.Errorf("generate interface %s: %w", schema.Name, err)
	}

	l.buckets[info.Category] = append(l.buckets[info.Category], GeneratedComponent{
		Info:      info,
		Source:    source,
		Interface: iface,
	})
	l.categories[info.ComponentName] = info.Category
	l.complexities[info.ComponentName] = info.Complexity
	l.dependencies[info.ComponentName] = info.Dependencies

	l.logger.Debug().
		Str("block", schema.Name).
		Str("component", info.ComponentName).
		Str("complexity", string(info.Complexity)).
		Msg("generated component")

	return info, nil
}

// Components returns the bucket for one category.
func (l *Library) Components(category Category) []GeneratedComponent {
	return l.buckets[category]
}

// Size returns the total number of generated components.
func (l *Library) Size() int {
	total := 0
	for _, bucket := range l.buckets {
		total += len(bucket)
	}
	return total
}

// metadata is the component-library.json artifact shape.
type metadata struct {
	GeneratedAt  time.Time             `json:"generated_at"`
	Total        int                   `json:"total"`
	Categories   map[string]Category   `json:"categories"`
	Complexities map[string]Complexity `json:"complexities"`
	Dependencies map[string][]string   `json:"dependencies"`
}

// WriteTree writes the generated source tree: one .tsx and .types.ts pair
// per component under its category directory, a per-category index.ts, and
// the library metadata file.
func (l *Library) WriteTree(dir string) error {
	for category, bucket := range l.buckets {
		categoryDir := filepath.Join(dir, string(category))
		if err := os.MkdirAll(categoryDir, 0o755); err != nil {
			return err
		}

		index := make([]string, 0, len(bucket))
		for _, component := range bucket {
			tsx := filepath.Join(categoryDir, component.Info.FileName+".tsx")
			if err := os.WriteFile(tsx, []byte(component.Source), 0o644); err != nil {
				return err
			}

			types := filepath.Join(categoryDir, component.Info.FileName+".types.ts")
			if err := os.WriteFile(types, []byte(component.Interface), 0o644); err != nil {
				return err
			}

			index = append(index, fmt.Sprintf("export { %s } from './%s';",
				component.Info.ComponentName, component.Info.FileName))
		}

		sort.Strings(index)
		indexSource := ""
		for _, line := range index {
			indexSource += line + "\n"
		}
		if err := os.WriteFile(filepath.Join(categoryDir, "index.ts"), []byte(indexSource), 0o644); err != nil {
			return err
		}
	}

	meta := metadata{
		GeneratedAt:  time.Now(),
		Total:        l.Size(),
		Categories:   l.categories,
		Complexities: l.complexities,
		Dependencies: l.dependencies,
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "component-library.json"), data, 0o644)
}
