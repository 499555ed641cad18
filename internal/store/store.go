package store

import (
	"context"

	"github.com/rendis/flowdesigner/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Definitions
	SaveDefinition(ctx context.Context, def *schema.WorkflowDefinition) (*Definition, error)
	GetDefinition(ctx context.Context, id string) (*Definition, error)
	ListDefinitions(ctx context.Context, filter DefinitionFilter) ([]*Definition, error)
	DeleteDefinition(ctx context.Context, id string) error

	// Revisions (append-only)
	ListRevisions(ctx context.Context, definitionID string) ([]*Revision, error)
	GetRevision(ctx context.Context, definitionID string, sequence int64) (*Revision, error)

	// Descriptors
	UpsertDescriptor(ctx context.Context, d *schema.ActivityDescriptor) error
	ListDescriptors(ctx context.Context) ([]*schema.ActivityDescriptor, error)
	DeleteDescriptor(ctx context.Context, activityType string, version int) error

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
