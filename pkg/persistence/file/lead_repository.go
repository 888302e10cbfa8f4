package file

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/persistence"
)

const kindLeads = "leads"

// LeadRepository is the file-backed lead store.
type LeadRepository struct {
	persistence *Persistence
}

func (r *LeadRepository) ByID(ctx context.Context, id string) (*models.Lead, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var lead models.Lead

	found, err := r.persistence.read(kindLeads, id, &lead)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrLeadNotFound
	}

	return &lead, nil
}

func (r *LeadRepository) ByOrganization(ctx context.Context, organizationID string) ([]*models.Lead, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	leads := make([]*models.Lead, 0)

	err := r.persistence.readAll(kindLeads, func(data []byte) error {
		var lead models.Lead

		if err := json.Unmarshal(data, &lead); err != nil {
			return err
		}

		if lead.OrganizationID == organizationID {
			leads = append(leads, &lead)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(leads, func(i, j int) bool {
		return leads[i].CreatedAt.Before(leads[j].CreatedAt)
	})

	return leads, nil
}

func (r *LeadRepository) Save(ctx context.Context, lead *models.Lead) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}

	return r.persistence.write(kindLeads, lead.ID, lead)
}
