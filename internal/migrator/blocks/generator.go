package blocks

import (
	"sort"
	"strings"
	"text/template"
)

// tsTypes maps block attribute types onto TypeScript prop types.
var tsTypes = map[string]string{
	"string":  "string",
	"number":  "number",
	"integer": "number",
	"boolean": "boolean",
	"array":   "any[]",
	"object":  "Record<string, any>",
}

// PropField is one optional prop derived from a block attribute.
type PropField struct {
	Name   string
	TSType string
}

// componentData is the typed input to the component template. Building it
// explicitly keeps the emitted source testable without string diffing.
type componentData struct {
	Info       ComponentInfo
	Props      []PropField
	HasContext bool
	HasStyles  bool
	Medium     bool
	Complex    bool
}

var componentTemplate = template.Must(template.New("component").Parse(
	`import React from 'react';
import { BlockWrapper } from '@/components/ui';
{{- if .HasContext}}
import { useBlockContext } from '@/hooks/use-block-context';
{{- end}}
{{- if .HasStyles}}
import styled from 'styled-components';
{{- end}}
import type { {{.Info.ComponentName}}Props } from './{{.Info.FileName}}.types';

{{if .HasStyles}}const Styled{{.Info.ComponentName}} = styled.{{.Info.Tag}}` + "`" + `
{{- range .Info.CSSVariables}}
  {{.}}: inherit;
{{- end}}
` + "`" + `;

{{end -}}
{{- if .Complex}}
// TODO: complex block, review generated scaffold:
{{- range .Info.ComplexityReasons}}
// TODO: {{.}}
{{- end}}
{{end -}}
export function {{.Info.ComponentName}}(props: {{.Info.ComponentName}}Props) {
{{- if .HasContext}}
  const context = useBlockContext();
{{- end}}
  return (
    <BlockWrapper as="{{.Info.Tag}}" block="{{.Info.BlockName}}"{{if .Medium}} {...props}{{end}}>
      {props.children}
    </BlockWrapper>
  );
}

export default {{.Info.ComponentName}};
`))

var interfaceTemplate = template.Must(template.New("interface").Parse(
	`// Props for the {{.Info.BlockName}} block.
export interface {{.Info.ComponentName}}Props {
  children?: React.ReactNode;
{{- range .Props}}
  {{.Name}}?: {{.TSType}};
{{- end}}
}
`))

// Generator emits component and interface source from analyzed schemas.
type Generator struct{}

// NewGenerator creates a source generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Component renders the React component source for one analyzed block.
func (g *Generator) Component(schema Schema, info ComponentInfo) (string, error) {
	data := buildComponentData(schema, info)

	var b strings.Builder
	if err := componentTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Interface renders the typed props interface for one analyzed block. One
// optional prop per attribute.
func (g *Generator) Interface(schema Schema, info ComponentInfo) (string, error) {
	data := buildComponentData(schema, info)

	var b strings.Builder
	if err := interfaceTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func buildComponentData(schema Schema, info ComponentInfo) componentData {
	data := componentData{
		Info:       info,
		HasContext: len(schema.UsesContext) > 0,
		HasStyles:  len(info.CSSVariables) > 0,
		Medium:     info.Complexity == ComplexityMedium || info.Complexity == ComplexityComplex,
		Complex:    info.Complexity == ComplexityComplex,
	}

	names := make([]string, 0, len(schema.Attributes))
	for name := range schema.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		data.Props = append(data.Props, PropField{
			Name:   name,
			TSType: TSType(schema.Attributes[name].Type),
		})
	}

	return data
}

// TSType maps a block attribute type descriptor onto a TypeScript type.
func TSType(attrType string) string {
	if ts, ok := tsTypes[attrType]; ok {
		return ts
	}
	return "any"
}
