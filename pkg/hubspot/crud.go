package hubspot

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// Property sets requested when reading records back.
var (
	CompanyProperties = []string{"name", "domain"}
	ContactProperties = []string{"firstname", "lastname", "email", "phone", "jobtitle", "company"}
	DealProperties    = []string{"dealname", "amount", "dealstage", "pipeline", "closedate", "description", "hs_lastmodifieddate"}
	TaskProperties    = []string{"hs_task_subject", "hs_task_body", "hs_task_status", "hs_timestamp"}
)

// FindCompanyByName returns the first company whose name equals name, or nil.
func FindCompanyByName(ctx context.Context, c Client, name string) (*Object, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, eris.New("hubspot: company name is required")
	}
	resp, err := c.SearchObjects(ctx, ObjectCompanies, SearchRequest{
		FilterGroups: []FilterGroup{{Filters: []Filter{{PropertyName: "name", Operator: OpEQ, Value: name}}}},
		Properties:   CompanyProperties,
		Limit:        1,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: find company %q", name)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

// FindContactByEmail returns the contact with the given email, or nil.
func FindContactByEmail(ctx context.Context, c Client, email string) (*Object, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, eris.New("hubspot: email is required")
	}
	resp, err := c.SearchObjects(ctx, ObjectContacts, SearchRequest{
		FilterGroups: []FilterGroup{{Filters: []Filter{{PropertyName: "email", Operator: OpEQ, Value: email}}}},
		Properties:   ContactProperties,
		Limit:        1,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: find contact %q", email)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

// SearchCompanies runs a free-text company search.
func SearchCompanies(ctx context.Context, c Client, term string, limit int) ([]Object, error) {
	resp, err := c.SearchObjects(ctx, ObjectCompanies, SearchRequest{
		Query:      term,
		Properties: CompanyProperties,
		Limit:      limit,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: search companies %q", term)
	}
	return resp.Results, nil
}

// SearchDeals runs a free-text deal search, optionally restricted to one
// pipeline, most recently modified first.
func SearchDeals(ctx context.Context, c Client, term, pipeline string, limit int) ([]Object, error) {
	req := SearchRequest{
		Query:      term,
		Properties: DealProperties,
		Sorts:      []Sort{{PropertyName: "hs_lastmodifieddate", Direction: "DESCENDING"}},
		Limit:      limit,
	}
	if pipeline != "" {
		req.FilterGroups = []FilterGroup{{Filters: []Filter{{PropertyName: "pipeline", Operator: OpEQ, Value: pipeline}}}}
	}
	resp, err := c.SearchObjects(ctx, ObjectDeals, req)
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: search deals %q", term)
	}
	return resp.Results, nil
}

// DealTasks loads the tasks associated with a deal.
func DealTasks(ctx context.Context, c Client, dealID string) ([]Object, error) {
	ids, err := c.ListAssociations(ctx, ObjectDeals, dealID, ObjectTasks)
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: list tasks of deal %s", dealID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	tasks, err := c.BatchReadObjects(ctx, ObjectTasks, ids, TaskProperties)
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: read tasks of deal %s", dealID)
	}
	return tasks, nil
}
