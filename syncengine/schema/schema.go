package schema

import (
	"time"

	"github.com/google/uuid"
)

const (
	SyncInProgress = "in_progress"
	SyncCompleted  = "completed"
	SyncFailed     = "failed"
)

const (
	MappingUnsynced = "unsynced"
	MappingSynced   = "synced"
	MappingConflict = "conflict"
)

const (
	RankNew       = "new"
	RankUnchanged = "unchanged"
	RankUp        = "up"
	RankDown      = "down"
)

// Metadata is the opaque custom-field bag attached to hierarchy entities.
// The engine never inspects its contents, it only round-trips them.
type Metadata map[string]interface{}

type Workspace struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"size:100;not null"`
}

type Board struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkspaceId uuid.UUID `gorm:"type:uuid;not null;index"`
	Name        string    `gorm:"size:100;not null"`
	AreaPath    string    `gorm:"size:255"`
}

type Product struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkspaceId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_ws_source"`
	SourceId    string    `gorm:"size:100;not null;uniqueIndex:idx_product_ws_source"`

	Name   string `gorm:"size:255;not null"`
	Status string `gorm:"size:100"`

	Metadata Metadata `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
	SyncedAt  time.Time
}

type Component struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkspaceId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_component_ws_source"`
	SourceId    string    `gorm:"size:100;not null;uniqueIndex:idx_component_ws_source"`

	Name   string `gorm:"size:255;not null"`
	Status string `gorm:"size:100"`

	// A component with no product is "unassigned".
	ProductId *uuid.UUID `gorm:"type:uuid"`
	Product   *Product   `gorm:"constraint:OnDelete:SET NULL"`

	Metadata Metadata `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
	SyncedAt  time.Time
}

type Initiative struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkspaceId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_initiative_ws_source"`
	SourceId    string    `gorm:"size:100;not null;uniqueIndex:idx_initiative_ws_source"`

	Name      string `gorm:"size:255;not null"`
	Status    string `gorm:"size:100"`
	Timeframe string `gorm:"size:100"`
	Owner     string `gorm:"size:255"`

	ProductId *uuid.UUID `gorm:"type:uuid"`
	Product   *Product   `gorm:"constraint:OnDelete:SET NULL"`

	Metadata Metadata `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
	SyncedAt  time.Time
}

type Feature struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkspaceId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_feature_ws_source"`
	SourceId    string    `gorm:"size:100;not null;uniqueIndex:idx_feature_ws_source"`

	Name   string `gorm:"size:255;not null"`
	Status string `gorm:"size:100"`
	Owner  string `gorm:"size:255"`

	TargetStartDate *time.Time
	TargetEndDate   *time.Time

	ComponentId *uuid.UUID `gorm:"type:uuid"`
	Component   *Component `gorm:"constraint:OnDelete:SET NULL"`

	// Self reference: a feature may be the child of another feature. The
	// parent graph within a workspace must stay acyclic; teardown strips
	// leaves bottom-up and bails out if it ever stops making progress.
	ParentId *uuid.UUID `gorm:"type:uuid"`
	Parent   *Feature   `gorm:"foreignKey:ParentId"`

	Metadata Metadata `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
	SyncedAt  time.Time
}

type InitiativeFeature struct {
	InitiativeId uuid.UUID `gorm:"type:uuid;primaryKey"`
	FeatureId    uuid.UUID `gorm:"type:uuid;primaryKey"`

	Initiative *Initiative `gorm:"foreignKey:InitiativeId"`
	Feature    *Feature    `gorm:"foreignKey:FeatureId"`

	Metadata Metadata `gorm:"serializer:json"`
}

type ComponentInitiative struct {
	ComponentId  uuid.UUID `gorm:"type:uuid;primaryKey"`
	InitiativeId uuid.UUID `gorm:"type:uuid;primaryKey"`

	Component  *Component  `gorm:"foreignKey:ComponentId"`
	Initiative *Initiative `gorm:"foreignKey:InitiativeId"`

	// DirectLink is true for links declared in the source system. Derived
	// links (component -> feature -> initiative) record the feature they
	// were inferred through.
	DirectLink       bool       `gorm:"not null;default:false"`
	LinkViaFeatureId *uuid.UUID `gorm:"type:uuid"`
}

type SyncHistory struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkspaceId uuid.UUID `gorm:"type:uuid;not null;index"`

	Status string `gorm:"size:50;not null"`

	ProductsCount    int `gorm:"not null;default:0"`
	ComponentsCount  int `gorm:"not null;default:0"`
	FeaturesCount    int `gorm:"not null;default:0"`
	InitiativesCount int `gorm:"not null;default:0"`

	ErrorMessage string

	StartedAt   time.Time `gorm:"not null"`
	CompletedAt *time.Time
}

type EntityMapping struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkspaceId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_mapping_ws_source"`
	SourceId    string    `gorm:"size:100;not null;uniqueIndex:idx_mapping_ws_source"`

	SourceParentId *string `gorm:"size:100"`

	// TargetId is set exactly once when the entity is linked and only an
	// explicit relink may change it afterwards.
	TargetId    *int
	TargetTitle string `gorm:"size:512"`

	SyncStatus   string `gorm:"size:50;not null;default:'unsynced'"`
	LastSyncedAt *time.Time
}

type RankingRecord struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkspaceId uuid.UUID `gorm:"type:uuid;not null;index"`
	BoardId     uuid.UUID `gorm:"type:uuid;not null;index"`

	// SyncHistoryId groups every record captured in one extraction run.
	SyncHistoryId uuid.UUID `gorm:"type:uuid;not null;index"`

	StoryId   string `gorm:"size:100;not null"`
	StoryName string `gorm:"size:255"`

	CurrentRank  int  `gorm:"not null"`
	PreviousRank *int

	Movement      string `gorm:"size:20;not null"`
	MovementDelta int    `gorm:"not null;default:0"`

	MatchingId     *int
	SyncedToTarget bool `gorm:"column:is_synced_to_ado;not null;default:false"`

	CreatedAt time.Time
}

// AllModels is the migration list shared by AutoMigrate callers and the
// versioned migrations.
func AllModels() []interface{} {
	return []interface{}{
		&Workspace{}, &Board{},
		&Product{}, &Component{}, &Initiative{}, &Feature{},
		&InitiativeFeature{}, &ComponentInitiative{},
		&SyncHistory{}, &EntityMapping{}, &RankingRecord{},
	}
}
