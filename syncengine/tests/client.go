package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"prodsync/syncengine/schema"
	"prodsync/syncengine/services"

	"github.com/google/uuid"
)

type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("request failed with status %d: %v", e.status, e.body)
}

func statusOf(err error) int {
	if herr, ok := err.(*httpError); ok {
		return herr.status
	}
	return 0
}

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	json     interface{}
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{api: api, method: method, endpoint: endpoint}
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

// response body will be parsed into result, passing nil indicates that no
// result is expected.
func (r *httpTestRequest) Do(result interface{}) error {
	var body io.Reader
	if r.json != nil {
		buf := new(bytes.Buffer)
		err := json.NewEncoder(buf).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		body = buf
	}

	req := httptest.NewRequest(r.method, r.endpoint, body)
	rec := httptest.NewRecorder()
	r.api.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		return &httpError{status: rec.Code, body: rec.Body.String()}
	}

	if result != nil {
		err := json.NewDecoder(rec.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing response from endpoint %v: %w", r.endpoint, err)
		}
	}
	return nil
}

type client struct {
	api http.Handler
}

func (c *client) get(endpoint string) *httpTestRequest {
	return newHttpTestRequest(c.api, "GET", endpoint)
}

func (c *client) post(endpoint string) *httpTestRequest {
	return newHttpTestRequest(c.api, "POST", endpoint)
}

type startSyncBody struct {
	ProductScope       string `json:"product_scope,omitempty"`
	InitiativeScope    string `json:"initiative_scope,omitempty"`
	IncludeComponents  *bool  `json:"include_components,omitempty"`
	IncludeInitiatives *bool  `json:"include_initiatives,omitempty"`
	IncludeFeatures    *bool  `json:"include_features,omitempty"`
	MaxDepth           int    `json:"max_depth,omitempty"`
}

func (c *client) startSync(workspaceId uuid.UUID, body startSyncBody) (services.SyncResult, error) {
	var result services.SyncResult
	err := c.post(fmt.Sprintf("/sync/%v/start", workspaceId)).Json(body).Do(&result)
	return result, err
}

func (c *client) syncProduct(workspaceId uuid.UUID, sourceId string) (services.SyncResult, error) {
	var result services.SyncResult
	err := c.post(fmt.Sprintf("/sync/%v/product/%v", workspaceId, sourceId)).Do(&result)
	return result, err
}

func (c *client) syncInitiative(workspaceId uuid.UUID, sourceId string) (services.SyncResult, error) {
	var result services.SyncResult
	err := c.post(fmt.Sprintf("/sync/%v/initiative/%v", workspaceId, sourceId)).Do(&result)
	return result, err
}

func (c *client) clearHierarchy(workspaceId uuid.UUID) (bool, error) {
	var result struct {
		Cleared bool `json:"cleared"`
	}
	err := c.post(fmt.Sprintf("/hierarchy/%v/clear", workspaceId)).Do(&result)
	return result.Cleared, err
}

func (c *client) latestSync(workspaceId uuid.UUID) (schema.SyncHistory, error) {
	var record schema.SyncHistory
	err := c.get(fmt.Sprintf("/history/%v/latest", workspaceId)).Do(&record)
	return record, err
}

func (c *client) hierarchyCounts(workspaceId uuid.UUID) (services.HierarchyCounts, error) {
	var counts services.HierarchyCounts
	err := c.get(fmt.Sprintf("/history/%v/counts", workspaceId)).Do(&counts)
	return counts, err
}

func (c *client) linkMapping(workspaceId uuid.UUID, sourceId string, targetId int) (bool, error) {
	var result struct {
		Ok bool `json:"ok"`
	}
	body := map[string]interface{}{"source_id": sourceId, "target_id": targetId}
	err := c.post(fmt.Sprintf("/mappings/%v/link", workspaceId)).Json(body).Do(&result)
	return result.Ok, err
}

func (c *client) applyTitlePrefix(workspaceId uuid.UUID, sourceId string, targetId int, currentTitle string) (bool, error) {
	var result struct {
		Ok bool `json:"ok"`
	}
	body := map[string]interface{}{"source_id": sourceId, "target_id": targetId, "current_title": currentTitle}
	err := c.post(fmt.Sprintf("/mappings/%v/title-prefix", workspaceId)).Json(body).Do(&result)
	return result.Ok, err
}

func (c *client) createParentChildLink(parentTargetId, childTargetId int) (bool, error) {
	var result struct {
		Ok bool `json:"ok"`
	}
	body := map[string]interface{}{"parent_target_id": parentTargetId, "child_target_id": childTargetId}
	err := c.post("/mappings/parent-link").Json(body).Do(&result)
	return result.Ok, err
}

func (c *client) parentMapping(workspaceId uuid.UUID, sourceId string) (schema.EntityMapping, error) {
	var mapping schema.EntityMapping
	err := c.get(fmt.Sprintf("/mappings/%v/parent/%v", workspaceId, sourceId)).Do(&mapping)
	return mapping, err
}

func (c *client) reconcileRanks(workspaceId, boardId uuid.UUID, items []services.ExtractedItem) ([]schema.RankingRecord, error) {
	var records []schema.RankingRecord
	body := map[string]interface{}{"items": items}
	err := c.post(fmt.Sprintf("/rankings/%v/%v/reconcile", workspaceId, boardId)).Json(body).Do(&records)
	return records, err
}

func (c *client) pushRankings(syncHistoryId uuid.UUID) (int, error) {
	var result struct {
		UpdatedCount int `json:"updated_count"`
	}
	err := c.post(fmt.Sprintf("/rankings/push/%v", syncHistoryId)).Do(&result)
	return result.UpdatedCount, err
}
