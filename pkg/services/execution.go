package services

import (
	"context"
	"fmt"

	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/persistence"
)

// ErrExecutionNotFound is returned when an execution is not found.
var ErrExecutionNotFound = persistence.ErrExecutionNotFound

// Execution exposes read access to flow executions for the API.
type Execution struct {
	persistence persistence.Persistence
}

func NewExecution(persistence persistence.Persistence) *Execution {
	return &Execution{
		persistence: persistence,
	}
}

func (s *Execution) FetchByID(ctx context.Context, id string) (*models.Execution, error) {
	execution, err := s.persistence.Executions().ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return execution, nil
}

// ListByFlow returns every execution of a flow, newest first.
func (s *Execution) ListByFlow(ctx context.Context, flowID string) ([]*models.Execution, error) {
	_, err := s.persistence.Flows().ByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	executions, err := s.persistence.Executions().ByFlow(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for flow %s: %w", flowID, err)
	}

	return executions, nil
}

// ListByLead returns every execution a lead has been part of.
func (s *Execution) ListByLead(ctx context.Context, leadID string) ([]*models.Execution, error) {
	executions, err := s.persistence.Executions().ByLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for lead %s: %w", leadID, err)
	}

	return executions, nil
}
