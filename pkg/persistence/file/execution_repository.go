package file

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/persistence"
)

const kindExecutions = "executions"

// ExecutionRepository is the file-backed execution store.
type ExecutionRepository struct {
	persistence *Persistence
}

// Create inserts the execution unless an active one already exists for the
// same (flow, lead) pair. The persistence mutex makes the check and the
// write atomic.
func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) (bool, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if execution.ID == "" {
		execution.ID = uuid.New().String()
	}

	if err := execution.State.Validate(); err != nil {
		return false, persistence.NewExecutionError("Create", execution.ID,
			fmt.Errorf("%w: %w", persistence.ErrInvalidExecutionState, err))
	}

	active, err := r.findActive(execution.FlowID, execution.LeadID)
	if err != nil {
		return false, persistence.NewExecutionError("Create", execution.ID, err)
	}

	if active != nil {
		return false, nil
	}

	if err := r.persistence.write(kindExecutions, execution.ID, execution); err != nil {
		return false, persistence.NewExecutionError("Create", execution.ID, err)
	}

	return true, nil
}

func (r *ExecutionRepository) ByID(ctx context.Context, id string) (*models.Execution, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var execution models.Execution

	found, err := r.persistence.read(kindExecutions, id, &execution)
	if err != nil {
		return nil, persistence.NewExecutionError("ByID", id, err)
	}

	if !found {
		return nil, persistence.NewExecutionError("ByID", id, persistence.ErrExecutionNotFound)
	}

	return &execution, nil
}

func (r *ExecutionRepository) Active(ctx context.Context, flowID, leadID string) (*models.Execution, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	execution, err := r.findActive(flowID, leadID)
	if err != nil {
		return nil, err
	}

	if execution == nil {
		return nil, persistence.ErrExecutionNotFound
	}

	return execution, nil
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if err := execution.State.Validate(); err != nil {
		return persistence.NewExecutionError("Save", execution.ID,
			fmt.Errorf("%w: %w", persistence.ErrInvalidExecutionState, err))
	}

	var existing models.Execution

	found, err := r.persistence.read(kindExecutions, execution.ID, &existing)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	if !found {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrExecutionNotFound)
	}

	if err := r.persistence.write(kindExecutions, execution.ID, execution); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) Due(ctx context.Context, now time.Time) ([]*models.Execution, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	executions, err := r.all(func(execution *models.Execution) bool {
		return execution.Status == models.ExecutionStatusWaiting &&
			execution.NextExecutionAt != nil &&
			!execution.NextExecutionAt.After(now)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].NextExecutionAt.Before(*executions[j].NextExecutionAt)
	})

	return executions, nil
}

func (r *ExecutionRepository) ByFlow(ctx context.Context, flowID string) ([]*models.Execution, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.all(func(execution *models.Execution) bool {
		return execution.FlowID == flowID
	})
}

func (r *ExecutionRepository) ByLead(ctx context.Context, leadID string) ([]*models.Execution, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.all(func(execution *models.Execution) bool {
		return execution.LeadID == leadID
	})
}

func (r *ExecutionRepository) findActive(flowID, leadID string) (*models.Execution, error) {
	executions, err := r.all(func(execution *models.Execution) bool {
		return execution.FlowID == flowID && execution.LeadID == leadID && execution.IsActive()
	})
	if err != nil {
		return nil, err
	}

	if len(executions) == 0 {
		return nil, nil
	}

	return executions[0], nil
}

func (r *ExecutionRepository) all(keep func(*models.Execution) bool) ([]*models.Execution, error) {
	executions := make([]*models.Execution, 0)

	err := r.persistence.readAll(kindExecutions, func(data []byte) error {
		var execution models.Execution

		if err := json.Unmarshal(data, &execution); err != nil {
			return err
		}

		if keep(&execution) {
			executions = append(executions, &execution)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return executions, nil
}
