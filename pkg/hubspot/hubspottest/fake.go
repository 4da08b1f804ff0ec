// Package hubspottest provides an in-memory hubspot.Client for tests.
package hubspottest

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sells-group/dealsync/pkg/hubspot"
)

// Call records one mutating request.
type Call struct {
	Op         string
	ObjectType string
	ID         string
	Properties map[string]string
}

type assocKey struct {
	fromType, fromID, toType string
}

type failKey struct {
	op, objectType string
}

// assocTypes maps HubSpot-defined association ids to (from, to) object types.
var assocTypes = map[int][2]string{
	hubspot.AssocContactToCompany: {hubspot.ObjectContacts, hubspot.ObjectCompanies},
	hubspot.AssocDealToContact:    {hubspot.ObjectDeals, hubspot.ObjectContacts},
	hubspot.AssocDealToCompany:    {hubspot.ObjectDeals, hubspot.ObjectCompanies},
	hubspot.AssocTaskToDeal:       {hubspot.ObjectTasks, hubspot.ObjectDeals},
}

// Fake is a concurrency-safe in-memory CRM. The zero value is not usable;
// call New.
type Fake struct {
	mu       sync.Mutex
	objects  map[string]map[string]*hubspot.Object
	order    map[string][]string
	assoc    map[assocKey][]string
	fail     map[failKey]error
	calls    []Call
	nextID   int
	now      time.Time
	props    map[string][]hubspot.Property
	pipes    map[string][]hubspot.Pipeline
	searches int
}

// New creates an empty fake CRM.
func New() *Fake {
	return &Fake{
		objects: make(map[string]map[string]*hubspot.Object),
		order:   make(map[string][]string),
		assoc:   make(map[assocKey][]string),
		fail:    make(map[failKey]error),
		props:   make(map[string][]hubspot.Property),
		pipes:   make(map[string][]hubspot.Pipeline),
		nextID:  1000,
		now:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// SetSchema installs property and pipeline definitions for objectType.
func (f *Fake) SetSchema(objectType string, props []hubspot.Property, pipelines []hubspot.Pipeline) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.props[objectType] = props
	f.pipes[objectType] = pipelines
}

// Seed stores a record and returns its id.
func (f *Fake) Seed(objectType string, props map[string]string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(objectType, props)
}

// Link associates two records in both directions.
func (f *Fake) Link(fromType, fromID, toType, toID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.link(fromType, fromID, toType, toID)
}

// FailOn makes every op ("get", "create", "update", "delete", "batch_read",
// "search", "list_associations", "associate", "properties", "pipelines") on
// objectType return err. A nil err clears the failure.
func (f *Fake) FailOn(op, objectType string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, failKey{op, objectType})
		return
	}
	f.fail[failKey{op, objectType}] = err
}

// Object returns a copy of a stored record, or nil.
func (f *Fake) Object(objectType, id string) *hubspot.Object {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[objectType][id]
	if !ok {
		return nil
	}
	return clone(o)
}

// Objects returns copies of every stored record of objectType in insertion order.
func (f *Fake) Objects(objectType string) []hubspot.Object {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []hubspot.Object
	for _, id := range f.order[objectType] {
		if o, ok := f.objects[objectType][id]; ok {
			out = append(out, *clone(o))
		}
	}
	return out
}

// Associated lists the ids linked from a record.
func (f *Fake) Associated(fromType, fromID, toType string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.assoc[assocKey{fromType, fromID, toType}])
}

// Calls returns the mutating calls made so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallCount counts mutating calls of op on objectType.
func (f *Fake) CallCount(op, objectType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op && c.ObjectType == objectType {
			n++
		}
	}
	return n
}

// Searches counts search requests.
func (f *Fake) Searches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches
}

func (f *Fake) GetObject(_ context.Context, objectType, id string, _ []string) (*hubspot.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("get", objectType); err != nil {
		return nil, err
	}
	o, ok := f.objects[objectType][id]
	if !ok {
		return nil, notFound(objectType, id)
	}
	return clone(o), nil
}

func (f *Fake) CreateObject(_ context.Context, objectType string, in hubspot.CreateInput) (*hubspot.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "create", ObjectType: objectType, Properties: copyMap(in.Properties)})
	if err := f.failure("create", objectType); err != nil {
		return nil, err
	}
	if objectType == hubspot.ObjectContacts {
		if email := in.Properties["email"]; email != "" {
			for _, id := range f.order[objectType] {
				if strings.EqualFold(f.objects[objectType][id].Properties["email"], email) {
					return nil, &hubspot.APIError{
						Kind:       hubspot.KindConflict,
						StatusCode: 409,
						Message:    "Contact already exists. Existing ID: " + id,
						Category:   "CONFLICT",
					}
				}
			}
		}
	}
	for _, a := range in.Associations {
		for _, t := range a.Types {
			pair, ok := assocTypes[t.TypeID]
			if !ok || pair[0] != objectType {
				return nil, &hubspot.APIError{Kind: hubspot.KindValidation, StatusCode: 400,
					Message: fmt.Sprintf("invalid association type %d", t.TypeID), Category: "VALIDATION_ERROR"}
			}
			if _, ok := f.objects[pair[1]][a.To.ID]; !ok {
				return nil, &hubspot.APIError{Kind: hubspot.KindValidation, StatusCode: 400,
					Message: "association target " + a.To.ID + " does not exist", Category: "VALIDATION_ERROR"}
			}
		}
	}
	id := f.insert(objectType, in.Properties)
	f.calls[len(f.calls)-1].ID = id
	for _, a := range in.Associations {
		for _, t := range a.Types {
			pair := assocTypes[t.TypeID]
			f.link(pair[0], id, pair[1], a.To.ID)
		}
	}
	return clone(f.objects[objectType][id]), nil
}

func (f *Fake) UpdateObject(_ context.Context, objectType, id string, properties map[string]string) (*hubspot.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "update", ObjectType: objectType, ID: id, Properties: copyMap(properties)})
	if err := f.failure("update", objectType); err != nil {
		return nil, err
	}
	o, ok := f.objects[objectType][id]
	if !ok {
		return nil, notFound(objectType, id)
	}
	for k, v := range properties {
		o.Properties[k] = v
	}
	f.touch(o)
	return clone(o), nil
}

func (f *Fake) DeleteObject(_ context.Context, objectType, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "delete", ObjectType: objectType, ID: id})
	if err := f.failure("delete", objectType); err != nil {
		return err
	}
	if _, ok := f.objects[objectType][id]; !ok {
		return notFound(objectType, id)
	}
	delete(f.objects[objectType], id)
	f.order[objectType] = slices.DeleteFunc(f.order[objectType], func(s string) bool { return s == id })
	for k, ids := range f.assoc {
		if k.fromType == objectType && k.fromID == id {
			delete(f.assoc, k)
			continue
		}
		if k.toType == objectType {
			f.assoc[k] = slices.DeleteFunc(ids, func(s string) bool { return s == id })
		}
	}
	return nil
}

func (f *Fake) BatchReadObjects(_ context.Context, objectType string, ids, _ []string) ([]hubspot.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("batch_read", objectType); err != nil {
		return nil, err
	}
	var out []hubspot.Object
	for _, id := range ids {
		if o, ok := f.objects[objectType][id]; ok {
			out = append(out, *clone(o))
		}
	}
	return out, nil
}

func (f *Fake) SearchObjects(_ context.Context, objectType string, req hubspot.SearchRequest) (*hubspot.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	if err := f.failure("search", objectType); err != nil {
		return nil, err
	}
	var matched []hubspot.Object
	ids := f.order[objectType]
	for i := len(ids) - 1; i >= 0; i-- {
		o := f.objects[objectType][ids[i]]
		if matchesQuery(o, req.Query) && matchesFilters(o, req.FilterGroups) {
			matched = append(matched, *clone(o))
		}
	}
	resp := &hubspot.SearchResponse{Total: len(matched)}
	if req.Limit > 0 && len(matched) > req.Limit {
		matched = matched[:req.Limit]
	}
	resp.Results = matched
	return resp, nil
}

func (f *Fake) ListAssociations(_ context.Context, fromType, fromID, toType string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("list_associations", fromType); err != nil {
		return nil, err
	}
	return slices.Clone(f.assoc[assocKey{fromType, fromID, toType}]), nil
}

func (f *Fake) Associate(_ context.Context, fromType, fromID, toType, toID string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "associate", ObjectType: fromType, ID: fromID + "->" + toType + "/" + toID})
	if err := f.failure("associate", fromType); err != nil {
		return err
	}
	if _, ok := f.objects[fromType][fromID]; !ok {
		return notFound(fromType, fromID)
	}
	if _, ok := f.objects[toType][toID]; !ok {
		return notFound(toType, toID)
	}
	f.link(fromType, fromID, toType, toID)
	return nil
}

func (f *Fake) GetProperties(_ context.Context, objectType string) ([]hubspot.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("properties", objectType); err != nil {
		return nil, err
	}
	return slices.Clone(f.props[objectType]), nil
}

func (f *Fake) GetPipelines(_ context.Context, objectType string) ([]hubspot.Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("pipelines", objectType); err != nil {
		return nil, err
	}
	return slices.Clone(f.pipes[objectType]), nil
}

func (f *Fake) failure(op, objectType string) error {
	return f.fail[failKey{op, objectType}]
}

func (f *Fake) insert(objectType string, props map[string]string) string {
	f.nextID++
	id := strconv.Itoa(f.nextID)
	if f.objects[objectType] == nil {
		f.objects[objectType] = make(map[string]*hubspot.Object)
	}
	o := &hubspot.Object{ID: id, Properties: copyMap(props), CreatedAt: f.tick()}
	o.UpdatedAt = o.CreatedAt
	o.Properties["hs_object_id"] = id
	o.Properties["hs_lastmodifieddate"] = o.UpdatedAt.Format(time.RFC3339Nano)
	f.objects[objectType][id] = o
	f.order[objectType] = append(f.order[objectType], id)
	return id
}

func (f *Fake) touch(o *hubspot.Object) {
	o.UpdatedAt = f.tick()
	o.Properties["hs_lastmodifieddate"] = o.UpdatedAt.Format(time.RFC3339Nano)
}

func (f *Fake) tick() time.Time {
	f.now = f.now.Add(time.Minute)
	return f.now
}

func (f *Fake) link(fromType, fromID, toType, toID string) {
	add := func(k assocKey, id string) {
		if !slices.Contains(f.assoc[k], id) {
			f.assoc[k] = append(f.assoc[k], id)
		}
	}
	add(assocKey{fromType, fromID, toType}, toID)
	add(assocKey{toType, toID, fromType}, fromID)
}

func matchesQuery(o *hubspot.Object, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	var hay strings.Builder
	for _, v := range o.Properties {
		hay.WriteString(strings.ToLower(v))
		hay.WriteByte(' ')
	}
	for _, tok := range strings.Fields(query) {
		if !strings.Contains(hay.String(), tok) {
			return false
		}
	}
	return true
}

func matchesFilters(o *hubspot.Object, groups []hubspot.FilterGroup) bool {
	if len(groups) == 0 {
		return true
	}
	for _, g := range groups {
		ok := true
		for _, flt := range g.Filters {
			if !matchesFilter(o, flt) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func matchesFilter(o *hubspot.Object, flt hubspot.Filter) bool {
	v, has := o.Properties[flt.PropertyName]
	switch flt.Operator {
	case hubspot.OpEQ:
		return has && strings.EqualFold(v, flt.Value)
	case hubspot.OpContainsToken:
		return has && strings.Contains(strings.ToLower(v), strings.ToLower(flt.Value))
	case hubspot.OpIn:
		return has && slices.ContainsFunc(flt.Values, func(s string) bool { return strings.EqualFold(s, v) })
	case hubspot.OpHasProperty:
		return has && v != ""
	default:
		return false
	}
}

func notFound(objectType, id string) error {
	return &hubspot.APIError{
		Kind:       hubspot.KindNotFound,
		StatusCode: 404,
		Message:    fmt.Sprintf("%s %s not found", objectType, id),
		Category:   "OBJECT_NOT_FOUND",
	}
}

func clone(o *hubspot.Object) *hubspot.Object {
	c := *o
	c.Properties = copyMap(o.Properties)
	return &c
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ hubspot.Client = (*Fake)(nil)
