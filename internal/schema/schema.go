// Package schema fetches and caches CRM property and pipeline definitions
// per connection and object type.
package schema

import (
	"strings"

	"github.com/sells-group/dealsync/pkg/hubspot"
)

// Schema is the read-only property and pipeline definition of one object type.
type Schema struct {
	ObjectType string
	Properties []hubspot.Property
	Pipelines  []hubspot.Pipeline

	byName map[string]int
}

// New builds a Schema and its property index.
func New(objectType string, props []hubspot.Property, pipelines []hubspot.Pipeline) *Schema {
	s := &Schema{
		ObjectType: objectType,
		Properties: props,
		Pipelines:  pipelines,
		byName:     make(map[string]int, len(props)),
	}
	for i, p := range props {
		s.byName[p.Name] = i
	}
	return s
}

// Property looks up a property definition by name.
func (s *Schema) Property(name string) (hubspot.Property, bool) {
	if s == nil {
		return hubspot.Property{}, false
	}
	i, ok := s.byName[name]
	if !ok {
		return hubspot.Property{}, false
	}
	return s.Properties[i], true
}

// IsReadOnly reports whether the property exists and cannot be written.
func (s *Schema) IsReadOnly(name string) bool {
	p, ok := s.Property(name)
	return ok && (p.ReadOnly || p.Calculated)
}

// IsEnum reports whether a property carries a fixed option set.
func IsEnum(p hubspot.Property) bool {
	if p.Type == "enumeration" {
		return true
	}
	switch p.FieldType {
	case "checkbox", "radio", "select", "booleancheckbox":
		return true
	}
	return false
}

// IsMultiSelect reports whether an enum property accepts several values.
func IsMultiSelect(p hubspot.Property) bool {
	return p.FieldType == "checkbox"
}

// IsDate reports whether a property stores a date or timestamp.
func IsDate(p hubspot.Property) bool {
	return p.Type == "date" || p.Type == "datetime"
}

// StageRef is a stage together with its owning pipeline.
type StageRef struct {
	PipelineID string
	hubspot.Stage
}

// Stages lists every stage of every pipeline in display order.
func (s *Schema) Stages() []StageRef {
	if s == nil {
		return nil
	}
	var out []StageRef
	for _, p := range s.Pipelines {
		for _, st := range p.Stages {
			out = append(out, StageRef{PipelineID: p.ID, Stage: st})
		}
	}
	return out
}

// StageByID finds a stage by exact id, case-insensitively.
func (s *Schema) StageByID(id string) (StageRef, bool) {
	for _, st := range s.Stages() {
		if strings.EqualFold(st.ID, id) {
			return st, true
		}
	}
	return StageRef{}, false
}

// HasPipeline reports whether a pipeline with the given id exists.
func (s *Schema) HasPipeline(id string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.Pipelines {
		if p.ID == id {
			return true
		}
	}
	return false
}
