package file

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/persistence"
)

const kindFlows = "flows"

// FlowRepository is the file-backed flow store.
type FlowRepository struct {
	persistence *Persistence
}

func (r *FlowRepository) All(ctx context.Context) ([]*models.Flow, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.all(func(flow *models.Flow) bool {
		return flow.DeletedAt == nil
	})
}

func (r *FlowRepository) AllActive(ctx context.Context) ([]*models.Flow, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.all(func(flow *models.Flow) bool {
		return flow.IsActive()
	})
}

func (r *FlowRepository) ActiveByOrganization(ctx context.Context, organizationID string) ([]*models.Flow, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.all(func(flow *models.Flow) bool {
		return flow.IsActive() && flow.OrganizationID == organizationID
	})
}

func (r *FlowRepository) ByID(ctx context.Context, id string) (*models.Flow, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var flow models.Flow

	found, err := r.persistence.read(kindFlows, id, &flow)
	if err != nil {
		return nil, persistence.NewFlowError("ByID", id, err)
	}

	if !found || flow.DeletedAt != nil {
		return nil, persistence.NewFlowError("ByID", id, persistence.ErrFlowNotFound)
	}

	return &flow, nil
}

func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}

	if err := r.persistence.write(kindFlows, flow.ID, flow); err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	var flow models.Flow

	found, err := r.persistence.read(kindFlows, id, &flow)
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	if !found || flow.DeletedAt != nil {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	now := time.Now().UTC()
	flow.DeletedAt = &now

	if err := r.persistence.write(kindFlows, id, &flow); err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	return nil
}

func (r *FlowRepository) all(keep func(*models.Flow) bool) ([]*models.Flow, error) {
	flows := make([]*models.Flow, 0)

	err := r.persistence.readAll(kindFlows, func(data []byte) error {
		var flow models.Flow

		if err := json.Unmarshal(data, &flow); err != nil {
			return err
		}

		if keep(&flow) {
			flows = append(flows, &flow)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(flows, func(i, j int) bool {
		return flows[i].CreatedAt.After(flows[j].CreatedAt)
	})

	return flows, nil
}
