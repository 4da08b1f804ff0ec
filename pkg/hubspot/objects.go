package hubspot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

func objectPath(objectType string) string {
	return "/crm/v3/objects/" + url.PathEscape(objectType)
}

func (c *httpClient) GetObject(ctx context.Context, objectType, id string, properties []string) (*Object, error) {
	if id == "" {
		return nil, eris.Errorf("hubspot: %s id is required", objectType)
	}
	q := url.Values{}
	if len(properties) > 0 {
		q.Set("properties", strings.Join(properties, ","))
	}
	var out Object
	if err := c.do(ctx, http.MethodGet, objectPath(objectType)+"/"+url.PathEscape(id), q, nil, &out); err != nil {
		return nil, eris.Wrapf(err, "hubspot: get %s %s", objectType, id)
	}
	return &out, nil
}

func (c *httpClient) CreateObject(ctx context.Context, objectType string, in CreateInput) (*Object, error) {
	if in.Properties == nil {
		in.Properties = map[string]string{}
	}
	var out Object
	if err := c.do(ctx, http.MethodPost, objectPath(objectType), nil, in, &out); err != nil {
		return nil, eris.Wrapf(err, "hubspot: create %s", objectType)
	}
	return &out, nil
}

func (c *httpClient) UpdateObject(ctx context.Context, objectType, id string, properties map[string]string) (*Object, error) {
	if id == "" {
		return nil, eris.Errorf("hubspot: %s id is required", objectType)
	}
	body := map[string]any{"properties": properties}
	var out Object
	if err := c.do(ctx, http.MethodPatch, objectPath(objectType)+"/"+url.PathEscape(id), nil, body, &out); err != nil {
		return nil, eris.Wrapf(err, "hubspot: update %s %s", objectType, id)
	}
	return &out, nil
}

func (c *httpClient) DeleteObject(ctx context.Context, objectType, id string) error {
	if id == "" {
		return eris.Errorf("hubspot: %s id is required", objectType)
	}
	if err := c.do(ctx, http.MethodDelete, objectPath(objectType)+"/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return eris.Wrapf(err, "hubspot: delete %s %s", objectType, id)
	}
	return nil
}

type batchReadInput struct {
	ID string `json:"id"`
}

type batchReadRequest struct {
	Properties []string         `json:"properties,omitempty"`
	Inputs     []batchReadInput `json:"inputs"`
}

type batchReadResponse struct {
	Status  string   `json:"status"`
	Results []Object `json:"results"`
}

// BatchReadObjects reads ids in chunks of 100, preserving the API's result
// order within each chunk. Missing ids are omitted.
func (c *httpClient) BatchReadObjects(ctx context.Context, objectType string, ids, properties []string) ([]Object, error) {
	var all []Object
	for start := 0; start < len(ids); start += maxBatchSize {
		end := min(start+maxBatchSize, len(ids))

		req := batchReadRequest{Properties: properties}
		for _, id := range ids[start:end] {
			req.Inputs = append(req.Inputs, batchReadInput{ID: id})
		}

		var resp batchReadResponse
		if err := c.do(ctx, http.MethodPost, objectPath(objectType)+"/batch/read", nil, req, &resp); err != nil {
			return nil, eris.Wrapf(err, "hubspot: batch read %s", objectType)
		}
		all = append(all, resp.Results...)
	}
	return all, nil
}

func (c *httpClient) SearchObjects(ctx context.Context, objectType string, req SearchRequest) (*SearchResponse, error) {
	var out SearchResponse
	if err := c.do(ctx, http.MethodPost, objectPath(objectType)+"/search", nil, req, &out); err != nil {
		return nil, eris.Wrapf(err, "hubspot: search %s", objectType)
	}
	return &out, nil
}

type associationsResponse struct {
	Results []struct {
		ToObjectID json.Number `json:"toObjectId"`
	} `json:"results"`
	Paging *Paging `json:"paging,omitempty"`
}

// ListAssociations returns the ids of toType records associated with the
// given record, following pagination.
func (c *httpClient) ListAssociations(ctx context.Context, fromType, fromID, toType string) ([]string, error) {
	path := fmt.Sprintf("/crm/v4/objects/%s/%s/associations/%s",
		url.PathEscape(fromType), url.PathEscape(fromID), url.PathEscape(toType))

	var ids []string
	after := ""
	for {
		q := url.Values{"limit": {"500"}}
		if after != "" {
			q.Set("after", after)
		}
		var resp associationsResponse
		if err := c.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
			return nil, eris.Wrapf(err, "hubspot: list %s associations of %s %s", toType, fromType, fromID)
		}
		for _, r := range resp.Results {
			ids = append(ids, r.ToObjectID.String())
		}
		if resp.Paging == nil || resp.Paging.Next.After == "" {
			return ids, nil
		}
		after = resp.Paging.Next.After
	}
}

func (c *httpClient) Associate(ctx context.Context, fromType, fromID, toType, toID string, typeID int) error {
	path := fmt.Sprintf("/crm/v4/objects/%s/%s/associations/%s/%s",
		url.PathEscape(fromType), url.PathEscape(fromID), url.PathEscape(toType), url.PathEscape(toID))
	body := []AssociationType{{Category: "HUBSPOT_DEFINED", TypeID: typeID}}
	if err := c.do(ctx, http.MethodPut, path, nil, body, nil); err != nil {
		return eris.Wrapf(err, "hubspot: associate %s %s to %s %s (type %d)",
			fromType, fromID, toType, toID, typeID)
	}
	return nil
}

type propertiesResponse struct {
	Results []rawProperty `json:"results"`
}

func (c *httpClient) GetProperties(ctx context.Context, objectType string) ([]Property, error) {
	var resp propertiesResponse
	if err := c.do(ctx, http.MethodGet, "/crm/v3/properties/"+url.PathEscape(objectType), nil, nil, &resp); err != nil {
		return nil, eris.Wrapf(err, "hubspot: get %s properties", objectType)
	}
	props := make([]Property, 0, len(resp.Results))
	for _, rp := range resp.Results {
		p := rp.Property
		p.ReadOnly = p.ReadOnly || rp.ModificationMetadata.ReadOnlyValue
		props = append(props, p)
	}
	return props, nil
}

type pipelinesResponse struct {
	Results []Pipeline `json:"results"`
}

func (c *httpClient) GetPipelines(ctx context.Context, objectType string) ([]Pipeline, error) {
	var resp pipelinesResponse
	if err := c.do(ctx, http.MethodGet, "/crm/v3/pipelines/"+url.PathEscape(objectType), nil, nil, &resp); err != nil {
		return nil, eris.Wrapf(err, "hubspot: get %s pipelines", objectType)
	}
	return resp.Results, nil
}
