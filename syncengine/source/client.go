package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrSourceFetch wraps any network or parse failure talking to the product
// management system. A sync run that hits one is aborted and the cause is
// recorded on the ledger row.
var ErrSourceFetch = errors.New("source system fetch failed")

// Scope limits a fetch to one product or one initiative subtree. The zero
// value means "everything in the workspace".
type Scope struct {
	ProductId    string
	InitiativeId string
}

type Product struct {
	Id       string                 `json:"id"`
	Name     string                 `json:"name"`
	Status   string                 `json:"status"`
	Metadata map[string]interface{} `json:"metadata"`
}

type Component struct {
	Id        string                 `json:"id"`
	Name      string                 `json:"name"`
	Status    string                 `json:"status"`
	ProductId string                 `json:"product_id"`
	// Initiative links declared directly on the component.
	InitiativeIds []string               `json:"initiative_ids"`
	Metadata      map[string]interface{} `json:"metadata"`
}

type Initiative struct {
	Id        string                 `json:"id"`
	Name      string                 `json:"name"`
	Status    string                 `json:"status"`
	Timeframe string                 `json:"timeframe"`
	Owner     string                 `json:"owner"`
	ProductId string                 `json:"product_id"`
	Metadata  map[string]interface{} `json:"metadata"`
}

type Feature struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Owner  string `json:"owner"`

	TargetStartDate *time.Time `json:"target_start_date"`
	TargetEndDate   *time.Time `json:"target_end_date"`

	ComponentId string `json:"component_id"`
	ParentId    string `json:"parent_id"`

	InitiativeIds []string `json:"initiative_ids"`

	Metadata map[string]interface{} `json:"metadata"`
}

type Client interface {
	FetchProducts(ctx context.Context, scope Scope) ([]Product, error)
	FetchComponents(ctx context.Context, scope Scope) ([]Component, error)
	FetchInitiatives(ctx context.Context, scope Scope) ([]Initiative, error)
	// FetchFeatures bounds the parent/child ancestry at maxDepth levels;
	// features nested deeper are dropped from the result.
	FetchFeatures(ctx context.Context, scope Scope, maxDepth int) ([]Feature, error)
}

type HttpClient struct {
	client *resty.Client
}

func NewHttpClient(baseUrl, apiToken string) *HttpClient {
	client := resty.New().
		SetBaseURL(baseUrl).
		SetAuthToken(apiToken).
		SetTimeout(60 * time.Second)

	return &HttpClient{client: client}
}

func (c *HttpClient) get(ctx context.Context, endpoint string, scope Scope, result interface{}) error {
	req := c.client.R().SetContext(ctx).SetResult(result)
	if scope.ProductId != "" {
		req.SetQueryParam("product_id", scope.ProductId)
	}
	if scope.InitiativeId != "" {
		req.SetQueryParam("initiative_id", scope.InitiativeId)
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		return fmt.Errorf("%w: GET %v: %v", ErrSourceFetch, endpoint, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: GET %v returned status %v", ErrSourceFetch, endpoint, resp.StatusCode())
	}
	return nil
}

func (c *HttpClient) FetchProducts(ctx context.Context, scope Scope) ([]Product, error) {
	var products []Product
	if err := c.get(ctx, "/api/v1/products", scope, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *HttpClient) FetchComponents(ctx context.Context, scope Scope) ([]Component, error) {
	var components []Component
	if err := c.get(ctx, "/api/v1/components", scope, &components); err != nil {
		return nil, err
	}
	return components, nil
}

func (c *HttpClient) FetchInitiatives(ctx context.Context, scope Scope) ([]Initiative, error) {
	var initiatives []Initiative
	if err := c.get(ctx, "/api/v1/initiatives", scope, &initiatives); err != nil {
		return nil, err
	}
	return initiatives, nil
}

func (c *HttpClient) FetchFeatures(ctx context.Context, scope Scope, maxDepth int) ([]Feature, error) {
	var features []Feature
	if err := c.get(ctx, "/api/v1/features", scope, &features); err != nil {
		return nil, err
	}
	return TrimToDepth(features, maxDepth), nil
}

// TrimToDepth drops features whose ancestry chain exceeds maxDepth levels.
// A feature whose parent was dropped is dropped with it, so the result is
// always a closed forest. Depth computation tolerates cycles by treating any
// chain longer than maxDepth as too deep.
func TrimToDepth(features []Feature, maxDepth int) []Feature {
	if maxDepth <= 0 {
		return features
	}

	byId := make(map[string]Feature, len(features))
	for _, f := range features {
		byId[f.Id] = f
	}

	depthOf := func(f Feature) int {
		depth := 1
		current := f
		for current.ParentId != "" {
			parent, ok := byId[current.ParentId]
			if !ok {
				// Parent outside the fetched set, treat as a root.
				break
			}
			depth++
			if depth > maxDepth {
				break
			}
			current = parent
		}
		return depth
	}

	kept := make([]Feature, 0, len(features))
	dropped := 0
	for _, f := range features {
		if depthOf(f) > maxDepth {
			dropped++
			continue
		}
		kept = append(kept, f)
	}

	if dropped > 0 {
		slog.Warn("dropped features nested deeper than max depth", "dropped", dropped, "max_depth", maxDepth)
	}
	return kept
}
