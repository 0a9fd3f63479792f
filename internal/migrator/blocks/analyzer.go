package blocks

import (
	"fmt"
	"sort"
	"strings"
)

// Complexity tiers for a generated component.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Category is the origin bucket a component is filed under.
type Category string

const (
	CategoryGeneratePress  Category = "generatepress"
	CategoryGenerateBlocks Category = "generateblocks"
	CategoryCore           Category = "core"
	CategoryThirdParty     Category = "third_party"
)

// Inferred dependency identifiers.
const (
	depBaseUI         = "@/components/ui"
	depContextHook    = "@/hooks/use-block-context"
	depStyled         = "styled-components"
	depThemeVariables = "@/styles/theme-variables"
	depHierarchy      = "@/components/block-hierarchy"
)

// Static CSS-variable lookup keyed by supports flags. Fixed lists, not
// computed from content.
var (
	colorVariables      = []string{"--accent", "--contrast", "--base"}
	typographyVariables = []string{"--font-family", "--font-size", "--line-height"}
	spacingVariables    = []string{"--spacing-unit", "--container-width"}
)

// Ordered keyword-to-tag table for HTML tag inference. First match wins.
var tagRules = []struct {
	keyword string
	tag     string
}{
	{"heading", "h2"},
	{"paragraph", "p"},
	{"image", "figure"},
	{"button", "button"},
	{"list", "ul"},
	{"quote", "blockquote"},
	{"table", "table"},
	{"video", "video"},
	{"audio", "audio"},
	{"form", "form"},
	{"nav", "nav"},
	{"section", "section"},
	{"article", "article"},
	{"header", "header"},
	{"footer", "footer"},
}

// ComponentInfo is everything derived from one block schema: naming,
// complexity classification, inferred dependencies and CSS variables.
type ComponentInfo struct {
	BlockName         string     `json:"block_name"`
	ComponentName     string     `json:"component_name"`
	FileName          string     `json:"file_name"`
	Complexity        Complexity `json:"complexity"`
	ComplexityReasons []string   `json:"complexity_reasons,omitempty"`
	Dependencies      []string   `json:"dependencies"`
	CSSVariables      []string   `json:"css_variables,omitempty"`
	Category          Category   `json:"category"`
	Tag               string     `json:"tag"`
}

// Analyzer classifies block schemas. The thresholds are tuning choices, so
// they are fields rather than constants.
type Analyzer struct {
	ComplexAttrThreshold int
	MediumAttrThreshold  int
}

// NewAnalyzer returns an analyzer with the default thresholds.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		ComplexAttrThreshold: 8,
		MediumAttrThreshold:  3,
	}
}

// Analyze derives the ComponentInfo for one schema. Pure: the same schema
// always yields the same info.
func (a *Analyzer) Analyze(schema Schema) ComponentInfo {
	info := ComponentInfo{
		BlockName:     schema.Name,
		ComponentName: ComponentName(schema.Name),
		FileName:      FileName(schema.Name),
		Category:      Categorize(schema.Name),
		Tag:           inferTag(schema.Name),
	}

	info.Complexity, info.ComplexityReasons = a.classify(schema)
	info.Dependencies = inferDependencies(schema)
	info.CSSVariables = inferCSSVariables(schema)

	return info
}

func (a *Analyzer) classify(schema Schema) (Complexity, []string) {
	var reasons []string

	if len(schema.Attributes) > a.ComplexAttrThreshold {
		reasons = append(reasons, fmt.Sprintf("%d attributes", len(schema.Attributes)))
	}
	if len(schema.UsesContext) > 0 {
		reasons = append(reasons, "consumes block context")
	}
	if len(schema.ProvidesContext) > 0 {
		reasons = append(reasons, "provides block context")
	}
	if len(schema.Styles) > 0 {
		reasons = append(reasons, "has style variants")
	}
	if len(schema.Variations) > 0 {
		reasons = append(reasons, "has block variations")
	}

	if len(reasons) > 0 {
		return ComplexityComplex, reasons
	}
	if len(schema.Attributes) > a.MediumAttrThreshold {
		return ComplexityMedium, nil
	}
	return ComplexitySimple, nil
}

// ComponentName converts a namespaced block name into a PascalCase
// component name with a Block suffix.
// "generateblocks/accordion-item" -> "AccordionItemBlock".
func ComponentName(blockName string) string {
	base := baseName(blockName)

	var b strings.Builder
	for _, part := range strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_'
	}) {
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	b.WriteString("Block")

	return b.String()
}

// FileName converts a block name into a kebab-case file stem.
// "generateblocks/accordion_item" -> "accordion-item".
func FileName(blockName string) string {
	return strings.ReplaceAll(strings.ToLower(baseName(blockName)), "_", "-")
}

// Categorize files a block name into one of the four origin buckets by
// prefix.
func Categorize(blockName string) Category {
	switch {
	case strings.HasPrefix(blockName, "generatepress/"):
		return CategoryGeneratePress
	case strings.HasPrefix(blockName, "generateblocks/"),
		strings.HasPrefix(blockName, "generateblocks-pro/"):
		return CategoryGenerateBlocks
	case strings.HasPrefix(blockName, "core/"):
		return CategoryCore
	default:
		return CategoryThirdParty
	}
}

func baseName(blockName string) string {
	if idx := strings.LastIndex(blockName, "/"); idx >= 0 {
		return blockName[idx+1:]
	}
	return blockName
}

func inferTag(blockName string) string {
	base := baseName(blockName)
	for _, rule := range tagRules {
		if strings.Contains(base, rule.keyword) {
			return rule.tag
		}
	}
	return "div"
}

func inferDependencies(schema Schema) []string {
	set := map[string]struct{}{
		depBaseUI: {},
	}

	if len(schema.UsesContext) > 0 {
		set[depContextHook] = struct{}{}
	}

	if hasStyleSupport(schema) {
		set[depStyled] = struct{}{}
		set[depThemeVariables] = struct{}{}
	}

	if len(schema.Parent) > 0 || len(schema.Ancestor) > 0 {
		set[depHierarchy] = struct{}{}
	}

	deps := make([]string, 0, len(set))
	for dep := range set {
		deps = append(deps, dep)
	}
	sort.Strings(deps)

	return deps
}

func inferCSSVariables(schema Schema) []string {
	var vars []string
	if supportsFeature(schema, "color") {
		vars = append(vars, colorVariables...)
	}
	if supportsFeature(schema, "typography") {
		vars = append(vars, typographyVariables...)
	}
	if supportsFeature(schema, "spacing") {
		vars = append(vars, spacingVariables...)
	}
	return vars
}

func hasStyleSupport(schema Schema) bool {
	return supportsFeature(schema, "color") ||
		supportsFeature(schema, "spacing") ||
		supportsFeature(schema, "typography")
}

func supportsFeature(schema Schema, feature string) bool {
	for key := range schema.Supports {
		if strings.Contains(strings.ToLower(key), feature) {
			return true
		}
	}
	return false
}
