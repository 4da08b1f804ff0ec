package hubspot

import (
	"encoding/json"
	"time"
)

// HubSpot-defined association type ids.
const (
	AssocContactToCompany = 1
	AssocDealToContact    = 3
	AssocDealToCompany    = 5
	AssocTaskToDeal       = 216
)

// Object is a CRM record. Null property values are dropped.
type Object struct {
	ID         string
	Properties map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Archived   bool
}

type rawObject struct {
	ID         string             `json:"id"`
	Properties map[string]*string `json:"properties"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
	Archived   bool               `json:"archived"`
}

// UnmarshalJSON flattens nullable property values.
func (o *Object) UnmarshalJSON(data []byte) error {
	var raw rawObject
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.ID = raw.ID
	o.CreatedAt = raw.CreatedAt
	o.UpdatedAt = raw.UpdatedAt
	o.Archived = raw.Archived
	o.Properties = make(map[string]string, len(raw.Properties))
	for k, v := range raw.Properties {
		if v != nil {
			o.Properties[k] = *v
		}
	}
	return nil
}

// Get returns a property value, or "" when unset.
func (o *Object) Get(name string) string {
	if o == nil {
		return ""
	}
	return o.Properties[name]
}

// AssociationType is one entry of an association's types list.
type AssociationType struct {
	Category string `json:"associationCategory"`
	TypeID   int    `json:"associationTypeId"`
}

// Association links a new record to an existing one at creation time.
type Association struct {
	To    AssociationTarget `json:"to"`
	Types []AssociationType `json:"types"`
}

// AssociationTarget identifies the record on the other side.
type AssociationTarget struct {
	ID string `json:"id"`
}

// NewAssociation builds a HubSpot-defined association to id.
func NewAssociation(id string, typeID int) Association {
	return Association{
		To:    AssociationTarget{ID: id},
		Types: []AssociationType{{Category: "HUBSPOT_DEFINED", TypeID: typeID}},
	}
}

// CreateInput is the body of an object create.
type CreateInput struct {
	Properties   map[string]string `json:"properties"`
	Associations []Association     `json:"associations,omitempty"`
}

// Search operators used by the engine.
const (
	OpEQ            = "EQ"
	OpContainsToken = "CONTAINS_TOKEN"
	OpIn            = "IN"
	OpHasProperty   = "HAS_PROPERTY"
)

// Filter is one (property, operator, value) predicate.
type Filter struct {
	PropertyName string   `json:"propertyName"`
	Operator     string   `json:"operator"`
	Value        string   `json:"value,omitempty"`
	Values       []string `json:"values,omitempty"`
}

// FilterGroup ANDs its filters. Groups are ORed together.
type FilterGroup struct {
	Filters []Filter `json:"filters"`
}

// Sort orders search results.
type Sort struct {
	PropertyName string `json:"propertyName"`
	Direction    string `json:"direction"`
}

// SearchRequest is the body of POST /crm/v3/objects/{type}/search.
type SearchRequest struct {
	Query        string        `json:"query,omitempty"`
	FilterGroups []FilterGroup `json:"filterGroups,omitempty"`
	Sorts        []Sort        `json:"sorts,omitempty"`
	Properties   []string      `json:"properties,omitempty"`
	Limit        int           `json:"limit,omitempty"`
	After        string        `json:"after,omitempty"`
}

// SearchResponse holds one page of search results.
type SearchResponse struct {
	Total   int      `json:"total"`
	Results []Object `json:"results"`
	Paging  *Paging  `json:"paging,omitempty"`
}

// Paging carries the cursor for the next page.
type Paging struct {
	Next struct {
		After string `json:"after"`
	} `json:"next"`
}

// PropertyOption is one allowed value of an enumeration property.
type PropertyOption struct {
	Label        string `json:"label"`
	Value        string `json:"value"`
	DisplayOrder int    `json:"displayOrder"`
	Hidden       bool   `json:"hidden"`
}

// Property is a CRM property definition.
type Property struct {
	Name       string           `json:"name"`
	Label      string           `json:"label"`
	Type       string           `json:"type"`
	FieldType  string           `json:"fieldType"`
	Options    []PropertyOption `json:"options,omitempty"`
	ReadOnly   bool             `json:"readOnly"`
	Calculated bool             `json:"calculated,omitempty"`
}

type rawProperty struct {
	Property
	ModificationMetadata struct {
		ReadOnlyValue bool `json:"readOnlyValue"`
	} `json:"modificationMetadata"`
}

// Stage is one step of a pipeline.
type Stage struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	DisplayOrder int    `json:"displayOrder"`
}

// Pipeline is an ordered set of deal stages.
type Pipeline struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	DisplayOrder int     `json:"displayOrder"`
	Stages       []Stage `json:"stages"`
}
