package ado

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrTargetWrite wraps any failure writing to the work tracking system.
// Callers treat it as a per-item failure, not a batch abort.
var ErrTargetWrite = errors.New("target system write failed")

const apiVersion = "7.0"

// Client is the surface of the work tracking system the engine writes to.
type Client interface {
	CreateItem(ctx context.Context, itemType string, fields map[string]interface{}) (int, error)
	UpdateItemTitle(ctx context.Context, itemId int, title string) error
	UpdateItemRank(ctx context.Context, itemId int, rank int) error
	CreateParentChildRelationship(ctx context.Context, parentId, childId int) error
}

type patchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

type workItem struct {
	Id int `json:"id"`
}

type HttpClient struct {
	client  *resty.Client
	orgUrl  string
	project string
}

// NewHttpClient talks to an Azure DevOps project using a personal access
// token. Work item mutations use the json-patch document format the wit api
// expects.
func NewHttpClient(orgUrl, project, pat string) *HttpClient {
	client := resty.New().
		SetBaseURL(orgUrl).
		SetBasicAuth("", pat).
		SetHeader("Content-Type", "application/json-patch+json").
		SetQueryParam("api-version", apiVersion).
		SetTimeout(60 * time.Second)

	return &HttpClient{client: client, orgUrl: orgUrl, project: project}
}

func (c *HttpClient) patch(ctx context.Context, endpoint string, ops []patchOp, result interface{}) error {
	req := c.client.R().SetContext(ctx).SetBody(ops)
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Patch(endpoint)
	if err != nil {
		return fmt.Errorf("%w: PATCH %v: %v", ErrTargetWrite, endpoint, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: PATCH %v returned status %v: %v", ErrTargetWrite, endpoint, resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *HttpClient) CreateItem(ctx context.Context, itemType string, fields map[string]interface{}) (int, error) {
	ops := make([]patchOp, 0, len(fields))
	for field, value := range fields {
		ops = append(ops, patchOp{Op: "add", Path: "/fields/" + field, Value: value})
	}

	var item workItem
	endpoint := fmt.Sprintf("/%v/_apis/wit/workitems/$%v", c.project, itemType)

	resp, err := c.client.R().SetContext(ctx).SetBody(ops).SetResult(&item).Post(endpoint)
	if err != nil {
		return 0, fmt.Errorf("%w: POST %v: %v", ErrTargetWrite, endpoint, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("%w: POST %v returned status %v: %v", ErrTargetWrite, endpoint, resp.StatusCode(), resp.String())
	}

	return item.Id, nil
}

func (c *HttpClient) UpdateItemTitle(ctx context.Context, itemId int, title string) error {
	ops := []patchOp{{Op: "add", Path: "/fields/System.Title", Value: title}}
	return c.patch(ctx, fmt.Sprintf("/%v/_apis/wit/workitems/%d", c.project, itemId), ops, nil)
}

func (c *HttpClient) UpdateItemRank(ctx context.Context, itemId int, rank int) error {
	ops := []patchOp{{Op: "add", Path: "/fields/Microsoft.VSTS.Common.StackRank", Value: rank}}
	return c.patch(ctx, fmt.Sprintf("/%v/_apis/wit/workitems/%d", c.project, itemId), ops, nil)
}

func (c *HttpClient) CreateParentChildRelationship(ctx context.Context, parentId, childId int) error {
	ops := []patchOp{{
		Op:   "add",
		Path: "/relations/-",
		Value: map[string]interface{}{
			"rel": "System.LinkTypes.Hierarchy-Reverse",
			"url": fmt.Sprintf("%v/_apis/wit/workItems/%d", c.orgUrl, parentId),
		},
	}}
	return c.patch(ctx, fmt.Sprintf("/%v/_apis/wit/workitems/%d", c.project, childId), ops, nil)
}
