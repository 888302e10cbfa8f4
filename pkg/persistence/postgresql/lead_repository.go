package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/persistence"
)

// LeadRepository handles lead database operations.
type LeadRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLeadRepository creates a new lead repository.
func NewLeadRepository(db *sql.DB, logger *slog.Logger) *LeadRepository {
	return &LeadRepository{db: db, logger: logger}
}

const leadColumns = `
	id
  , organization_id
  , name
  , phone
  , email
  , stage_id
  , tags
  , fields
  , created_at
  , updated_at
`

func (r *LeadRepository) ByID(ctx context.Context, id string) (*models.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE id = $1
	`

	lead, err := r.scanLead(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrLeadNotFound
		}

		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}

	return lead, nil
}

func (r *LeadRepository) ByOrganization(ctx context.Context, organizationID string) ([]*models.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	leads := make([]*models.Lead, 0)

	for rows.Next() {
		lead, err := r.scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}

		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leads: %w", err)
	}

	return leads, nil
}

func (r *LeadRepository) Save(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}

	tagsJSON, err := json.Marshal(lead.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	fieldsJSON, err := json.Marshal(lead.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	query := `
		INSERT INTO leads (
			id, organization_id, name, phone, email, stage_id, tags, fields,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			stage_id = EXCLUDED.stage_id,
			tags = EXCLUDED.tags,
			fields = EXCLUDED.fields,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		lead.ID,
		lead.OrganizationID,
		lead.Name,
		lead.Phone,
		lead.Email,
		lead.StageID,
		tagsJSON,
		fieldsJSON,
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}

	return nil
}

func (r *LeadRepository) scanLead(row rowScanner) (*models.Lead, error) {
	var (
		lead       models.Lead
		tagsJSON   []byte
		fieldsJSON []byte
	)

	err := row.Scan(
		&lead.ID,
		&lead.OrganizationID,
		&lead.Name,
		&lead.Phone,
		&lead.Email,
		&lead.StageID,
		&tagsJSON,
		&fieldsJSON,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tagsJSON, &lead.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	if err := json.Unmarshal(fieldsJSON, &lead.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}

	return &lead, nil
}
