// Package protocol defines the interfaces and contracts for pluggable actions.
package protocol

import (
	"context"
	"log/slog"

	"github.com/leadflowhq/leadflow/pkg/models"
)

// ActionContext carries the lead and execution an action operates on.
type ActionContext struct {
	Lead      *models.Lead
	Execution *models.Execution
	Logger    *slog.Logger
}

// Action is a single node side effect (send a message, call a webhook,
// mutate the lead).
type Action interface {
	Execute(ctx context.Context, actionCtx ActionContext) (any, error)
}

// ActionFunc adapts a plain function to the Action interface.
type ActionFunc func(ctx context.Context, actionCtx ActionContext) (any, error)

func (f ActionFunc) Execute(ctx context.Context, actionCtx ActionContext) (any, error) {
	return f(ctx, actionCtx)
}

// ActionFactory creates action instances from node configuration.
type ActionFactory interface {
	Create(config map[string]any) (Action, error)
	ID() string
}
