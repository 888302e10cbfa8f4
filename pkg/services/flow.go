package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/persistence"
)

// ErrFlowNotFound is returned when a flow is not found.
var ErrFlowNotFound = persistence.ErrFlowNotFound

// Flow is the application service behind the flow builder API.
type Flow struct {
	persistence persistence.Persistence
}

// NewFlow creates a new flow service.
func NewFlow(persistence persistence.Persistence) *Flow {
	return &Flow{
		persistence: persistence,
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List retrieves the flows of one organization, or every flow when
// organizationID is empty.
func (s *Flow) List(ctx context.Context, organizationID string) ([]*models.Flow, error) {
	flows, err := s.persistence.Flows().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	if organizationID == "" {
		return flows, nil
	}

	filtered := make([]*models.Flow, 0, len(flows))

	for _, flow := range flows {
		if flow.OrganizationID == organizationID {
			filtered = append(filtered, flow)
		}
	}

	return filtered, nil
}

// FetchByID retrieves a flow by its ID.
func (s *Flow) FetchByID(ctx context.Context, id string) (*models.Flow, error) {
	flow, err := s.persistence.Flows().ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return flow, nil
}

// Create validates and saves a new flow. New flows start inactive; the
// matcher only sees them after an explicit Activate.
func (s *Flow) Create(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	if flow == nil {
		return nil, ErrFlowNil
	}

	now := time.Now().UTC()
	flow.ID = uuid.New().String()
	flow.CreatedAt = now
	flow.UpdatedAt = now

	if flow.Status == "" {
		flow.Status = models.FlowStatusInactive
	}

	if err := ValidateFlow(flow); err != nil {
		return nil, err
	}

	err := s.persistence.Flows().Save(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	return flow, nil
}

// Update validates and replaces an existing flow definition.
func (s *Flow) Update(ctx context.Context, flowID string, flow *models.Flow) (*models.Flow, error) {
	if flow == nil {
		return nil, ErrFlowNil
	}

	existing, err := s.persistence.Flows().ByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	flow.ID = flowID
	flow.OrganizationID = existing.OrganizationID
	flow.CreatedBy = existing.CreatedBy
	flow.CreatedAt = existing.CreatedAt
	flow.UpdatedAt = time.Now().UTC()

	if flow.Status == "" {
		flow.Status = existing.Status
	}

	if err := ValidateFlow(flow); err != nil {
		return nil, err
	}

	err = s.persistence.Flows().Save(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to update flow: %w", err)
	}

	return flow, nil
}

// Delete soft deletes a flow by its ID.
func (s *Flow) Delete(ctx context.Context, flowID string) error {
	_, err := s.persistence.Flows().ByID(ctx, flowID)
	if err != nil {
		return err
	}

	err = s.persistence.Flows().Delete(ctx, flowID)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	return nil
}

// Activate switches a flow to active, making it visible to the trigger
// matcher. The graph is revalidated so stale drafts cannot go live.
func (s *Flow) Activate(ctx context.Context, flowID string) (*models.Flow, error) {
	flow, err := s.persistence.Flows().ByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if flow.Status == models.FlowStatusActive {
		return nil, ErrAlreadyActive
	}

	if err := ValidateFlow(flow); err != nil {
		return nil, err
	}

	flow.Status = models.FlowStatusActive
	flow.UpdatedAt = time.Now().UTC()

	err = s.persistence.Flows().Save(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to activate flow: %w", err)
	}

	return flow, nil
}

// Deactivate switches a flow to inactive. In-flight executions keep running;
// only new trigger matches stop.
func (s *Flow) Deactivate(ctx context.Context, flowID string) (*models.Flow, error) {
	flow, err := s.persistence.Flows().ByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if flow.Status == models.FlowStatusInactive {
		return nil, ErrAlreadyInactive
	}

	flow.Status = models.FlowStatusInactive
	flow.UpdatedAt = time.Now().UTC()

	err = s.persistence.Flows().Save(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate flow: %w", err)
	}

	return flow, nil
}
