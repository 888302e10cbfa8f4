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

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

const flowColumns = `
	id
  , organization_id
  , name
  , description
  , status
  , nodes
  , edges
  , created_by
  , created_at
  , updated_at
  , deleted_at
`

func (r *FlowRepository) All(ctx context.Context) ([]*models.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM automation_flows
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	return r.queryFlows(ctx, query)
}

func (r *FlowRepository) AllActive(ctx context.Context) ([]*models.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM automation_flows
		WHERE status = 'active' AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	return r.queryFlows(ctx, query)
}

func (r *FlowRepository) ActiveByOrganization(ctx context.Context, organizationID string) ([]*models.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM automation_flows
		WHERE organization_id = $1 AND status = 'active' AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	return r.queryFlows(ctx, query, organizationID)
}

func (r *FlowRepository) ByID(ctx context.Context, id string) (*models.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM automation_flows
		WHERE id = $1 AND deleted_at IS NULL
	`

	row := r.db.QueryRowContext(ctx, query, id)

	flow, err := r.scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("ByID", id, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("ByID", id, err)
	}

	return flow, nil
}

// Save upserts a flow.
func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}

	nodesJSON, err := json.Marshal(flow.Nodes)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, fmt.Errorf("failed to marshal nodes: %w", err))
	}

	edgesJSON, err := json.Marshal(flow.Edges)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, fmt.Errorf("failed to marshal edges: %w", err))
	}

	query := `
		INSERT INTO automation_flows (
			id, organization_id, name, description, status, nodes, edges,
			created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		flow.ID,
		flow.OrganizationID,
		flow.Name,
		flow.Description,
		flow.Status,
		nodesJSON,
		edgesJSON,
		flow.CreatedBy,
		flow.CreatedAt,
		flow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

// Delete soft deletes a flow by setting deleted_at.
func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE automation_flows
		SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	return nil
}

func (r *FlowRepository) queryFlows(ctx context.Context, query string, args ...any) ([]*models.Flow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := r.scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *FlowRepository) scanFlow(row rowScanner) (*models.Flow, error) {
	var (
		flow      models.Flow
		nodesJSON []byte
		edgesJSON []byte
		createdBy sql.NullString
	)

	err := row.Scan(
		&flow.ID,
		&flow.OrganizationID,
		&flow.Name,
		&flow.Description,
		&flow.Status,
		&nodesJSON,
		&edgesJSON,
		&createdBy,
		&flow.CreatedAt,
		&flow.UpdatedAt,
		&flow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	flow.CreatedBy = createdBy.String

	if err := json.Unmarshal(nodesJSON, &flow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}

	if err := json.Unmarshal(edgesJSON, &flow.Edges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
	}

	return &flow, nil
}
