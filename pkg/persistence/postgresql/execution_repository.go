package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/persistence"
)

// ExecutionRepository handles flow execution database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , flow_id
  , lead_id
  , organization_id
  , current_node_id
  , status
  , state
  , next_execution_at
  , completed_at
  , created_by
  , created_at
  , updated_at
`

// Create inserts the execution unless an active one already exists for the
// same (flow, lead) pair. The partial unique index makes the check and the
// insert a single atomic statement.
func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) (bool, error) {
	if execution.ID == "" {
		execution.ID = uuid.New().String()
	}

	if err := execution.State.Validate(); err != nil {
		return false, persistence.NewExecutionError("Create", execution.ID,
			fmt.Errorf("%w: %w", persistence.ErrInvalidExecutionState, err))
	}

	stateJSON, err := json.Marshal(execution.State)
	if err != nil {
		return false, persistence.NewExecutionError("Create", execution.ID, err)
	}

	query := `
		INSERT INTO flow_executions (
			id, flow_id, lead_id, organization_id, current_node_id, status,
			state, next_execution_at, completed_at, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (flow_id, lead_id) WHERE status IN ('running', 'waiting')
		DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.FlowID,
		execution.LeadID,
		execution.OrganizationID,
		execution.CurrentNodeID,
		execution.Status,
		stateJSON,
		execution.NextExecutionAt,
		execution.CompletedAt,
		execution.CreatedBy,
		execution.CreatedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		return false, persistence.NewExecutionError("Create", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewExecutionError("Create", execution.ID, err)
	}

	return affected > 0, nil
}

func (r *ExecutionRepository) ByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM flow_executions
		WHERE id = $1
	`

	execution, err := r.scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("ByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("ByID", id, err)
	}

	return execution, nil
}

func (r *ExecutionRepository) Active(ctx context.Context, flowID, leadID string) (*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM flow_executions
		WHERE flow_id = $1 AND lead_id = $2 AND status IN ('running', 'waiting')
	`

	execution, err := r.scanExecution(r.db.QueryRowContext(ctx, query, flowID, leadID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to query active execution: %w", err)
	}

	return execution, nil
}

// Save persists every execution transition.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	if err := execution.State.Validate(); err != nil {
		return persistence.NewExecutionError("Save", execution.ID,
			fmt.Errorf("%w: %w", persistence.ErrInvalidExecutionState, err))
	}

	stateJSON, err := json.Marshal(execution.State)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	query := `
		UPDATE flow_executions SET
			current_node_id = $2,
			status = $3,
			state = $4,
			next_execution_at = $5,
			completed_at = $6,
			updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.CurrentNodeID,
		execution.Status,
		stateJSON,
		execution.NextExecutionAt,
		execution.CompletedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

// Due returns waiting executions whose next_execution_at has elapsed.
func (r *ExecutionRepository) Due(ctx context.Context, now time.Time) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM flow_executions
		WHERE status = 'waiting' AND next_execution_at IS NOT NULL AND next_execution_at <= $1
		ORDER BY next_execution_at ASC
	`

	return r.queryExecutions(ctx, query, now)
}

func (r *ExecutionRepository) ByFlow(ctx context.Context, flowID string) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM flow_executions
		WHERE flow_id = $1
		ORDER BY created_at DESC
	`

	return r.queryExecutions(ctx, query, flowID)
}

func (r *ExecutionRepository) ByLead(ctx context.Context, leadID string) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM flow_executions
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`

	return r.queryExecutions(ctx, query, leadID)
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := r.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution models.Execution
		stateJSON []byte
		createdBy sql.NullString
	)

	err := row.Scan(
		&execution.ID,
		&execution.FlowID,
		&execution.LeadID,
		&execution.OrganizationID,
		&execution.CurrentNodeID,
		&execution.Status,
		&stateJSON,
		&execution.NextExecutionAt,
		&execution.CompletedAt,
		&createdBy,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.CreatedBy = createdBy.String

	if err := json.Unmarshal(stateJSON, &execution.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution state: %w", err)
	}

	return &execution, nil
}
