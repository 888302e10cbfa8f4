// Package persistence provides the data storage abstraction for flows,
// executions and leads.
package persistence

import (
	"context"
	"time"

	"github.com/leadflowhq/leadflow/pkg/models"
)

type Persistence interface {
	Flows() FlowRepository
	Executions() ExecutionRepository
	Leads() LeadRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FlowRepository stores automation flow definitions.
type FlowRepository interface {
	All(ctx context.Context) ([]*models.Flow, error)
	AllActive(ctx context.Context) ([]*models.Flow, error)
	ActiveByOrganization(ctx context.Context, organizationID string) ([]*models.Flow, error)
	ByID(ctx context.Context, id string) (*models.Flow, error)
	Save(ctx context.Context, flow *models.Flow) error
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores flow executions.
type ExecutionRepository interface {
	// Create inserts the execution unless an active execution for the same
	// (flow, lead) pair already exists. It reports whether the insert took
	// effect, closing the check-then-insert race in a single operation.
	Create(ctx context.Context, execution *models.Execution) (bool, error)

	ByID(ctx context.Context, id string) (*models.Execution, error)

	// Active returns the running or waiting execution for the pair, or
	// ErrExecutionNotFound when none exists.
	Active(ctx context.Context, flowID, leadID string) (*models.Execution, error)

	Save(ctx context.Context, execution *models.Execution) error

	// Due returns waiting executions whose next_execution_at has elapsed.
	Due(ctx context.Context, now time.Time) ([]*models.Execution, error)

	ByFlow(ctx context.Context, flowID string) ([]*models.Execution, error)
	ByLead(ctx context.Context, leadID string) ([]*models.Execution, error)
}

// LeadRepository stores leads. The engine reads leads for trigger matching
// and node processing; writes happen only through the update_lead action.
type LeadRepository interface {
	ByID(ctx context.Context, id string) (*models.Lead, error)
	ByOrganization(ctx context.Context, organizationID string) ([]*models.Lead, error)
	Save(ctx context.Context, lead *models.Lead) error
}
