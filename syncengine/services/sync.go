package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"prodsync/syncengine/schema"
	"prodsync/syncengine/source"
	"prodsync/utils"
	"prodsync/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	ErrSyncBusy            = errors.New("a sync is already in progress for this workspace")
	ErrConstraintViolation = errors.New("hierarchy constraint violation")
)

var (
	syncRunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hierarchy_sync_runs_started", Help: "Hierarchy sync runs started",
	})
	syncRunsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hierarchy_sync_runs_completed", Help: "Hierarchy sync runs completed",
	})
	syncRunsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hierarchy_sync_runs_failed", Help: "Hierarchy sync runs failed",
	})
	entitiesUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hierarchy_entities_upserted", Help: "Hierarchy entities upserted per kind",
	}, []string{"kind"})
)

// workspaceGuard serializes sync runs per workspace within this process. It
// is not a cross instance lock: before running multiple replicas this must
// be replaced by a lock row keyed on (workspace_id, status=in_progress).
type workspaceGuard struct {
	mu     sync.Mutex
	active map[uuid.UUID]bool
}

func newWorkspaceGuard() *workspaceGuard {
	return &workspaceGuard{active: make(map[uuid.UUID]bool)}
}

func (g *workspaceGuard) acquire(workspaceId uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[workspaceId] {
		return false
	}
	g.active[workspaceId] = true
	return true
}

func (g *workspaceGuard) release(workspaceId uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, workspaceId)
}

func (g *workspaceGuard) held(workspaceId uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active[workspaceId]
}

const DefaultMaxDepth = 5

type SyncService struct {
	db *gorm.DB

	sourceClient source.Client
	mapping      *MappingService

	guard *workspaceGuard
}

type SyncOptions struct {
	WorkspaceId uuid.UUID

	// ProductScope/InitiativeScope limit the run to one subtree. Source
	// system identifiers, not row ids.
	ProductScope    string
	InitiativeScope string

	IncludeComponents  bool
	IncludeInitiatives bool
	IncludeFeatures    bool

	MaxDepth int
}

type SyncResult struct {
	SyncId uuid.UUID `json:"sync_id"`
	Status string    `json:"status"`

	ProductsCount    int `json:"products_count"`
	ComponentsCount  int `json:"components_count"`
	FeaturesCount    int `json:"features_count"`
	InitiativesCount int `json:"initiatives_count"`

	Error string `json:"error,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

type syncCounts struct {
	products    int
	components  int
	features    int
	initiatives int
}

// StartSync drives one synchronization run: fetch from the source system,
// upsert into the hierarchy store, rebuild the junction tables, and record
// the outcome on the ledger. Failures do not roll back upserts that already
// happened; a re-run is idempotent and picks up where this one stopped.
func (s *SyncService) StartSync(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	if _, err := schema.GetWorkspace(opts.WorkspaceId, s.db); err != nil {
		return SyncResult{}, err
	}

	if !s.guard.acquire(opts.WorkspaceId) {
		return SyncResult{}, ErrSyncBusy
	}
	defer s.guard.release(opts.WorkspaceId)

	record := schema.SyncHistory{
		Id:          uuid.New(),
		WorkspaceId: opts.WorkspaceId,
		Status:      schema.SyncInProgress,
		StartedAt:   time.Now().UTC(),
	}
	if result := s.db.Create(&record); result.Error != nil {
		slog.Error("sql error creating sync history record", "workspace_id", opts.WorkspaceId, "error", result.Error)
		return SyncResult{}, schema.ErrDbAccessFailed
	}

	syncRunsStarted.Inc()
	slog.Info("hierarchy sync started", "sync_id", record.Id, "workspace_id", opts.WorkspaceId, "code", logging.SYNC_RUN)

	counts, runErr := s.runSync(ctx, opts)

	completedAt := time.Now().UTC()
	updates := map[string]interface{}{
		"products_count":    counts.products,
		"components_count":  counts.components,
		"features_count":    counts.features,
		"initiatives_count": counts.initiatives,
		"completed_at":      completedAt,
	}
	if runErr != nil {
		updates["status"] = schema.SyncFailed
		updates["error_message"] = runErr.Error()
	} else {
		updates["status"] = schema.SyncCompleted
	}

	if result := s.db.Model(&schema.SyncHistory{}).Where("id = ?", record.Id).Updates(updates); result.Error != nil {
		slog.Error("sql error finalizing sync history record", "sync_id", record.Id, "error", result.Error)
		return SyncResult{}, schema.ErrDbAccessFailed
	}

	syncResult := SyncResult{
		SyncId:           record.Id,
		ProductsCount:    counts.products,
		ComponentsCount:  counts.components,
		FeaturesCount:    counts.features,
		InitiativesCount: counts.initiatives,
		StartedAt:        record.StartedAt,
		CompletedAt:      &completedAt,
	}

	if runErr != nil {
		syncRunsFailed.Inc()
		syncResult.Status = schema.SyncFailed
		syncResult.Error = runErr.Error()
		slog.Error("hierarchy sync failed", "sync_id", record.Id, "error", runErr, "code", logging.SYNC_RUN)
		return syncResult, runErr
	}

	syncRunsCompleted.Inc()
	syncResult.Status = schema.SyncCompleted
	slog.Info("hierarchy sync completed", "sync_id", record.Id,
		"products", counts.products, "components", counts.components,
		"features", counts.features, "initiatives", counts.initiatives, "code", logging.SYNC_RUN)
	return syncResult, nil
}

// SyncProduct scopes a run to one product and its descendants.
func (s *SyncService) SyncProduct(ctx context.Context, workspaceId uuid.UUID, productSourceId string) (SyncResult, error) {
	return s.StartSync(ctx, SyncOptions{
		WorkspaceId:        workspaceId,
		ProductScope:       productSourceId,
		IncludeComponents:  true,
		IncludeInitiatives: true,
		IncludeFeatures:    true,
	})
}

// SyncInitiative scopes a run to one initiative and its features. Components
// are excluded; derived component links are rebuilt from whatever components
// already exist in the store.
func (s *SyncService) SyncInitiative(ctx context.Context, workspaceId uuid.UUID, initiativeSourceId string) (SyncResult, error) {
	return s.StartSync(ctx, SyncOptions{
		WorkspaceId:        workspaceId,
		InitiativeScope:    initiativeSourceId,
		IncludeComponents:  false,
		IncludeInitiatives: true,
		IncludeFeatures:    true,
	})
}

func (s *SyncService) runSync(ctx context.Context, opts SyncOptions) (syncCounts, error) {
	var counts syncCounts

	scope := source.Scope{ProductId: opts.ProductScope, InitiativeId: opts.InitiativeScope}
	now := time.Now().UTC()

	products, err := s.sourceClient.FetchProducts(ctx, scope)
	if err != nil {
		return counts, err
	}

	productIds := make(map[string]uuid.UUID, len(products))
	for _, p := range products {
		id, err := s.upsertProduct(opts.WorkspaceId, p, now)
		if err != nil {
			return counts, err
		}
		productIds[p.Id] = id
		counts.products++
		entitiesUpserted.WithLabelValues("product").Inc()
	}

	var components []source.Component
	componentIds := make(map[string]uuid.UUID)
	if opts.IncludeComponents {
		components, err = s.sourceClient.FetchComponents(ctx, scope)
		if err != nil {
			return counts, err
		}
		for _, c := range components {
			id, err := s.upsertComponent(opts.WorkspaceId, c, productIds, now)
			if err != nil {
				return counts, err
			}
			componentIds[c.Id] = id
			counts.components++
			entitiesUpserted.WithLabelValues("component").Inc()
		}
	}

	var initiatives []source.Initiative
	initiativeIds := make(map[string]uuid.UUID)
	if opts.IncludeInitiatives {
		initiatives, err = s.sourceClient.FetchInitiatives(ctx, scope)
		if err != nil {
			return counts, err
		}
		for _, in := range initiatives {
			id, err := s.upsertInitiative(opts.WorkspaceId, in, productIds, now)
			if err != nil {
				return counts, err
			}
			initiativeIds[in.Id] = id
			counts.initiatives++
			entitiesUpserted.WithLabelValues("initiative").Inc()
		}
	}

	var features []source.Feature
	featureIds := make(map[string]uuid.UUID)
	if opts.IncludeFeatures {
		features, err = s.sourceClient.FetchFeatures(ctx, scope, opts.MaxDepth)
		if err != nil {
			return counts, err
		}

		// Two phases: rows first, parent links second, so that a child is
		// never inserted before its parent row exists.
		for _, f := range features {
			id, err := s.upsertFeature(opts.WorkspaceId, f, componentIds, now)
			if err != nil {
				return counts, err
			}
			featureIds[f.Id] = id
			counts.features++
			entitiesUpserted.WithLabelValues("feature").Inc()
		}
		for _, f := range features {
			if err := s.linkFeatureParent(f, featureIds); err != nil {
				return counts, err
			}
			s.mapping.RecordSourceEntity(opts.WorkspaceId, f.Id, f.ParentId)
		}
	}

	if err := s.rebuildJunctions(opts.WorkspaceId, components, features, componentIds, initiativeIds, featureIds); err != nil {
		return counts, err
	}

	return counts, nil
}

func (s *SyncService) upsertProduct(workspaceId uuid.UUID, p source.Product, now time.Time) (uuid.UUID, error) {
	var existing schema.Product
	result := s.db.First(&existing, "workspace_id = ? AND source_id = ?", workspaceId, p.Id)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Error("sql error looking up product", "source_id", p.Id, "error", result.Error)
			return uuid.Nil, schema.ErrDbAccessFailed
		}

		product := schema.Product{
			Id:          uuid.New(),
			WorkspaceId: workspaceId,
			SourceId:    p.Id,
			Name:        p.Name,
			Status:      p.Status,
			Metadata:    schema.Metadata(p.Metadata),
			SyncedAt:    now,
		}
		if result := s.db.Create(&product); result.Error != nil {
			slog.Error("sql error creating product", "source_id", p.Id, "error", result.Error)
			return uuid.Nil, schema.ErrDbAccessFailed
		}
		return product.Id, nil
	}

	update := schema.Product{Name: p.Name, Status: p.Status, Metadata: schema.Metadata(p.Metadata), SyncedAt: now}
	if result := s.db.Model(&existing).Select("name", "status", "metadata", "synced_at").Updates(update); result.Error != nil {
		slog.Error("sql error updating product", "source_id", p.Id, "error", result.Error)
		return uuid.Nil, schema.ErrDbAccessFailed
	}
	return existing.Id, nil
}

func (s *SyncService) upsertComponent(workspaceId uuid.UUID, c source.Component, productIds map[string]uuid.UUID, now time.Time) (uuid.UUID, error) {
	productId, err := s.resolveProductId(workspaceId, c.ProductId, productIds)
	if err != nil {
		return uuid.Nil, err
	}

	var existing schema.Component
	result := s.db.First(&existing, "workspace_id = ? AND source_id = ?", workspaceId, c.Id)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Error("sql error looking up component", "source_id", c.Id, "error", result.Error)
			return uuid.Nil, schema.ErrDbAccessFailed
		}

		component := schema.Component{
			Id:          uuid.New(),
			WorkspaceId: workspaceId,
			SourceId:    c.Id,
			Name:        c.Name,
			Status:      c.Status,
			ProductId:   productId,
			Metadata:    schema.Metadata(c.Metadata),
			SyncedAt:    now,
		}
		if result := s.db.Create(&component); result.Error != nil {
			slog.Error("sql error creating component", "source_id", c.Id, "error", result.Error)
			return uuid.Nil, schema.ErrDbAccessFailed
		}
		return component.Id, nil
	}

	update := schema.Component{Name: c.Name, Status: c.Status, ProductId: productId, Metadata: schema.Metadata(c.Metadata), SyncedAt: now}
	if result := s.db.Model(&existing).Select("name", "status", "product_id", "metadata", "synced_at").Updates(update); result.Error != nil {
		slog.Error("sql error updating component", "source_id", c.Id, "error", result.Error)
		return uuid.Nil, schema.ErrDbAccessFailed
	}
	return existing.Id, nil
}

func (s *SyncService) upsertInitiative(workspaceId uuid.UUID, in source.Initiative, productIds map[string]uuid.UUID, now time.Time) (uuid.UUID, error) {
	productId, err := s.resolveProductId(workspaceId, in.ProductId, productIds)
	if err != nil {
		return uuid.Nil, err
	}

	var existing schema.Initiative
	result := s.db.First(&existing, "workspace_id = ? AND source_id = ?", workspaceId, in.Id)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Error("sql error looking up initiative", "source_id", in.Id, "error", result.Error)
			return uuid.Nil, schema.ErrDbAccessFailed
		}

		initiative := schema.Initiative{
			Id:          uuid.New(),
			WorkspaceId: workspaceId,
			SourceId:    in.Id,
			Name:        in.Name,
			Status:      in.Status,
			Timeframe:   in.Timeframe,
			Owner:       in.Owner,
			ProductId:   productId,
			Metadata:    schema.Metadata(in.Metadata),
			SyncedAt:    now,
		}
		if result := s.db.Create(&initiative); result.Error != nil {
			slog.Error("sql error creating initiative", "source_id", in.Id, "error", result.Error)
			return uuid.Nil, schema.ErrDbAccessFailed
		}
		return initiative.Id, nil
	}

	update := schema.Initiative{
		Name: in.Name, Status: in.Status, Timeframe: in.Timeframe, Owner: in.Owner,
		ProductId: productId, Metadata: schema.Metadata(in.Metadata), SyncedAt: now,
	}
	if result := s.db.Model(&existing).Select("name", "status", "timeframe", "owner", "product_id", "metadata", "synced_at").Updates(update); result.Error != nil {
		slog.Error("sql error updating initiative", "source_id", in.Id, "error", result.Error)
		return uuid.Nil, schema.ErrDbAccessFailed
	}
	return existing.Id, nil
}

func (s *SyncService) upsertFeature(workspaceId uuid.UUID, f source.Feature, componentIds map[string]uuid.UUID, now time.Time) (uuid.UUID, error) {
	componentId, err := s.resolveComponentId(workspaceId, f.ComponentId, componentIds)
	if err != nil {
		return uuid.Nil, err
	}

	var existing schema.Feature
	result := s.db.First(&existing, "workspace_id = ? AND source_id = ?", workspaceId, f.Id)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Error("sql error looking up feature", "source_id", f.Id, "error", result.Error)
			return uuid.Nil, schema.ErrDbAccessFailed
		}

		feature := schema.Feature{
			Id:              uuid.New(),
			WorkspaceId:     workspaceId,
			SourceId:        f.Id,
			Name:            f.Name,
			Status:          f.Status,
			Owner:           f.Owner,
			TargetStartDate: f.TargetStartDate,
			TargetEndDate:   f.TargetEndDate,
			ComponentId:     componentId,
			Metadata:        schema.Metadata(f.Metadata),
			SyncedAt:        now,
		}
		if result := s.db.Create(&feature); result.Error != nil {
			slog.Error("sql error creating feature", "source_id", f.Id, "error", result.Error)
			return uuid.Nil, schema.ErrDbAccessFailed
		}
		return feature.Id, nil
	}

	update := schema.Feature{
		Name: f.Name, Status: f.Status, Owner: f.Owner,
		TargetStartDate: f.TargetStartDate, TargetEndDate: f.TargetEndDate,
		ComponentId: componentId, Metadata: schema.Metadata(f.Metadata), SyncedAt: now,
	}
	if result := s.db.Model(&existing).Select(
		"name", "status", "owner", "target_start_date", "target_end_date", "component_id", "metadata", "synced_at",
	).Updates(update); result.Error != nil {
		slog.Error("sql error updating feature", "source_id", f.Id, "error", result.Error)
		return uuid.Nil, schema.ErrDbAccessFailed
	}
	return existing.Id, nil
}

func (s *SyncService) linkFeatureParent(f source.Feature, featureIds map[string]uuid.UUID) error {
	id, ok := featureIds[f.Id]
	if !ok {
		return nil
	}

	var parentId *uuid.UUID
	if f.ParentId != "" {
		if pid, ok := featureIds[f.ParentId]; ok {
			parentId = &pid
		} else {
			// Parent trimmed by depth bound or outside the sync scope.
			slog.Warn("feature parent not present in sync set", "source_id", f.Id, "parent_source_id", f.ParentId, "code", logging.SYNC_UPSERT)
		}
	}

	result := s.db.Model(&schema.Feature{}).Where("id = ?", id).Update("parent_id", parentId)
	if result.Error != nil {
		slog.Error("sql error linking feature parent", "source_id", f.Id, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}

// rebuildJunctions recomputes both junction sets from the fetched entities.
// Declared initiative-feature links are written directly; component to
// initiative links come both from direct declarations and transitively
// through features that belong to a component.
func (s *SyncService) rebuildJunctions(
	workspaceId uuid.UUID,
	components []source.Component, features []source.Feature,
	componentIds, initiativeIds, featureIds map[string]uuid.UUID,
) error {
	for _, f := range features {
		featureId, ok := featureIds[f.Id]
		if !ok {
			continue
		}

		for _, initiativeSourceId := range f.InitiativeIds {
			initiativeId, err := s.resolveInitiativeId(workspaceId, initiativeSourceId, initiativeIds)
			if err != nil {
				return err
			}
			if initiativeId == nil {
				slog.Warn("declared initiative link to unknown initiative", "feature", f.Id, "initiative", initiativeSourceId, "code", logging.SYNC_JUNCTION)
				continue
			}

			if err := s.upsertInitiativeFeature(*initiativeId, featureId); err != nil {
				return err
			}

			if f.ComponentId == "" {
				continue
			}
			componentId, err := s.resolveComponentId(workspaceId, f.ComponentId, componentIds)
			if err != nil {
				return err
			}
			if componentId == nil {
				continue
			}
			if err := s.upsertComponentInitiative(*componentId, *initiativeId, false, &featureId); err != nil {
				return err
			}
		}
	}

	// Direct declarations win over derived links.
	for _, c := range components {
		componentId, ok := componentIds[c.Id]
		if !ok {
			continue
		}
		for _, initiativeSourceId := range c.InitiativeIds {
			initiativeId, err := s.resolveInitiativeId(workspaceId, initiativeSourceId, initiativeIds)
			if err != nil {
				return err
			}
			if initiativeId == nil {
				slog.Warn("declared initiative link to unknown initiative", "component", c.Id, "initiative", initiativeSourceId, "code", logging.SYNC_JUNCTION)
				continue
			}
			if err := s.upsertComponentInitiative(componentId, *initiativeId, true, nil); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *SyncService) upsertInitiativeFeature(initiativeId, featureId uuid.UUID) error {
	var existing schema.InitiativeFeature
	result := s.db.First(&existing, "initiative_id = ? AND feature_id = ?", initiativeId, featureId)
	if result.Error == nil {
		return nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		slog.Error("sql error looking up initiative feature link", "error", result.Error)
		return schema.ErrDbAccessFailed
	}

	link := schema.InitiativeFeature{InitiativeId: initiativeId, FeatureId: featureId}
	if result := s.db.Create(&link); result.Error != nil {
		slog.Error("sql error creating initiative feature link", "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}

func (s *SyncService) upsertComponentInitiative(componentId, initiativeId uuid.UUID, direct bool, viaFeatureId *uuid.UUID) error {
	var existing schema.ComponentInitiative
	result := s.db.First(&existing, "component_id = ? AND initiative_id = ?", componentId, initiativeId)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Error("sql error looking up component initiative link", "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		link := schema.ComponentInitiative{
			ComponentId:      componentId,
			InitiativeId:     initiativeId,
			DirectLink:       direct,
			LinkViaFeatureId: viaFeatureId,
		}
		if result := s.db.Create(&link); result.Error != nil {
			slog.Error("sql error creating component initiative link", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		return nil
	}

	if !direct || existing.DirectLink {
		return nil
	}

	updates := map[string]interface{}{"direct_link": true, "link_via_feature_id": nil}
	result = s.db.Model(&schema.ComponentInitiative{}).
		Where("component_id = ? AND initiative_id = ?", componentId, initiativeId).
		Updates(updates)
	if result.Error != nil {
		slog.Error("sql error upgrading component initiative link", "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}

func (s *SyncService) resolveProductId(workspaceId uuid.UUID, sourceId string, cache map[string]uuid.UUID) (*uuid.UUID, error) {
	if sourceId == "" {
		return nil, nil
	}
	if id, ok := cache[sourceId]; ok {
		return &id, nil
	}

	var product schema.Product
	result := s.db.First(&product, "workspace_id = ? AND source_id = ?", workspaceId, sourceId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("sql error resolving product reference", "source_id", sourceId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}
	cache[sourceId] = product.Id
	return &product.Id, nil
}

func (s *SyncService) resolveComponentId(workspaceId uuid.UUID, sourceId string, cache map[string]uuid.UUID) (*uuid.UUID, error) {
	if sourceId == "" {
		return nil, nil
	}
	if id, ok := cache[sourceId]; ok {
		return &id, nil
	}

	var component schema.Component
	result := s.db.First(&component, "workspace_id = ? AND source_id = ?", workspaceId, sourceId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("sql error resolving component reference", "source_id", sourceId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}
	cache[sourceId] = component.Id
	return &component.Id, nil
}

func (s *SyncService) resolveInitiativeId(workspaceId uuid.UUID, sourceId string, cache map[string]uuid.UUID) (*uuid.UUID, error) {
	if sourceId == "" {
		return nil, nil
	}
	if id, ok := cache[sourceId]; ok {
		return &id, nil
	}

	var initiative schema.Initiative
	result := s.db.First(&initiative, "workspace_id = ? AND source_id = ?", workspaceId, sourceId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("sql error resolving initiative reference", "source_id", sourceId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}
	cache[sourceId] = initiative.Id
	return &initiative.Id, nil
}

type startSyncRequest struct {
	ProductScope       string `json:"product_scope"`
	InitiativeScope    string `json:"initiative_scope"`
	IncludeComponents  *bool  `json:"include_components"`
	IncludeInitiatives *bool  `json:"include_initiatives"`
	IncludeFeatures    *bool  `json:"include_features"`
	MaxDepth           int    `json:"max_depth"`
}

func (s *SyncService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/{workspace_id}/start", s.Start)
	r.Post("/{workspace_id}/product/{source_id}", s.StartProduct)
	r.Post("/{workspace_id}/initiative/{source_id}", s.StartInitiative)

	return r
}

func (s *SyncService) Start(w http.ResponseWriter, r *http.Request) {
	workspaceId, err := utils.URLParamUUID(r, "workspace_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req startSyncRequest
	if !utils.ParseRequestBody(w, r, &req) {
		return
	}

	include := func(flag *bool) bool {
		return flag == nil || *flag
	}

	result, err := s.StartSync(r.Context(), SyncOptions{
		WorkspaceId:        workspaceId,
		ProductScope:       req.ProductScope,
		InitiativeScope:    req.InitiativeScope,
		IncludeComponents:  include(req.IncludeComponents),
		IncludeInitiatives: include(req.IncludeInitiatives),
		IncludeFeatures:    include(req.IncludeFeatures),
		MaxDepth:           req.MaxDepth,
	})
	s.writeSyncResult(w, result, err)
}

func (s *SyncService) StartProduct(w http.ResponseWriter, r *http.Request) {
	workspaceId, err := utils.URLParamUUID(r, "workspace_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sourceId, err := utils.URLParam(r, "source_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.SyncProduct(r.Context(), workspaceId, sourceId)
	s.writeSyncResult(w, result, err)
}

func (s *SyncService) StartInitiative(w http.ResponseWriter, r *http.Request) {
	workspaceId, err := utils.URLParamUUID(r, "workspace_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sourceId, err := utils.URLParam(r, "source_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.SyncInitiative(r.Context(), workspaceId, sourceId)
	s.writeSyncResult(w, result, err)
}

// A run that failed after it was recorded still returns the ledger view of
// the attempt; only errors before any work started become http errors.
func (s *SyncService) writeSyncResult(w http.ResponseWriter, result SyncResult, err error) {
	if err != nil && result.SyncId == uuid.Nil {
		http.Error(w, err.Error(), errorCode(err))
		return
	}
	utils.WriteJsonResponse(w, result)
}
