package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Page is a Notion page object reduced to the fields this service reads.
type Page struct {
	ID         string         `json:"id"`
	Parent     map[string]any `json:"parent"`
	Properties map[string]any `json:"properties"`
	URL        string         `json:"url,omitempty"`
}

// Query parameterizes a database query. Filter takes the raw Notion filter
// object shape; a nil filter queries everything.
type Query struct {
	Filter      any
	StartCursor string
	PageSize    int
}

// QueryResult is one page of database query results.
type QueryResult struct {
	Results    []Page
	HasMore    bool
	NextCursor string
}

type queryResponse struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// GetPage fetches a single page by id.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	data, err := c.do(ctx, http.MethodGet, "/pages/"+pageID, nil)
	if err != nil {
		return nil, fmt.Errorf("get page %s: %w", pageID, err)
	}
	var page Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode page %s: %w", pageID, err)
	}
	if page.Properties == nil {
		page.Properties = map[string]any{}
	}
	return &page, nil
}

// QueryDatabase runs one page of a database query. Callers follow
// HasMore/NextCursor for full enumeration.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, q Query) (*QueryResult, error) {
	body := map[string]any{}
	if q.Filter != nil {
		body["filter"] = q.Filter
	}
	if q.StartCursor != "" {
		body["start_cursor"] = q.StartCursor
	}
	if q.PageSize > 0 {
		body["page_size"] = q.PageSize
	}
	data, err := c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", body)
	if err != nil {
		return nil, fmt.Errorf("query database %s: %w", databaseID, err)
	}
	var res queryResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode query response for %s: %w", databaseID, err)
	}
	out := &QueryResult{Results: res.Results, HasMore: res.HasMore}
	if res.NextCursor != nil {
		out.NextCursor = *res.NextCursor
	}
	return out, nil
}

// CreatePage creates a page in a database and returns the new page id.
func (c *Client) CreatePage(ctx context.Context, parentDatabaseID string, properties map[string]any) (string, error) {
	body := map[string]any{
		"parent":     map[string]any{"database_id": parentDatabaseID},
		"properties": properties,
	}
	data, err := c.do(ctx, http.MethodPost, "/pages", body)
	if err != nil {
		return "", fmt.Errorf("create page in %s: %w", parentDatabaseID, err)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("decode create response for %s: %w", parentDatabaseID, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create page in %s: response missing id", parentDatabaseID)
	}
	return created.ID, nil
}

// UpdatePage patches properties on an existing page.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]any) error {
	body := map[string]any{"properties": properties}
	if _, err := c.do(ctx, http.MethodPatch, "/pages/"+pageID, body); err != nil {
		return fmt.Errorf("update page %s: %w", pageID, err)
	}
	return nil
}

type propertyItemsResponse struct {
	Results []struct {
		Relation struct {
			ID string `json:"id"`
		} `json:"relation"`
	} `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

func (c *Client) propertyItems(ctx context.Context, pageID, propID, startCursor string) (*propertyItemsResponse, error) {
	path := "/pages/" + pageID + "/properties/" + url.PathEscape(propID)
	if startCursor != "" {
		path += "?start_cursor=" + url.QueryEscape(startCursor)
	}
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("get property items %s/%s: %w", pageID, propID, err)
	}
	var res propertyItemsResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode property items %s/%s: %w", pageID, propID, err)
	}
	return &res, nil
}

// RelationIDs enumerates every related page id of a relation property,
// following pagination until exhausted.
func (c *Client) RelationIDs(ctx context.Context, pageID, propID string) ([]string, error) {
	var ids []string
	cursor := ""
	for {
		res, err := c.propertyItems(ctx, pageID, propID, cursor)
		if err != nil {
			return nil, err
		}
		for _, item := range res.Results {
			if item.Relation.ID != "" {
				ids = append(ids, item.Relation.ID)
			}
		}
		if !res.HasMore || res.NextCursor == nil || *res.NextCursor == "" {
			return ids, nil
		}
		cursor = *res.NextCursor
	}
}

// SingleRelationID returns the first related page id of a relation
// property, or "" when the relation is empty.
func (c *Client) SingleRelationID(ctx context.Context, pageID, propID string) (string, error) {
	res, err := c.propertyItems(ctx, pageID, propID, "")
	if err != nil {
		return "", err
	}
	for _, item := range res.Results {
		if item.Relation.ID != "" {
			return item.Relation.ID, nil
		}
	}
	return "", nil
}
