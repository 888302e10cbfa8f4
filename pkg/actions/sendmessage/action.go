// Package sendmessage implements the send_message action, delivering a
// WhatsApp text message to the lead.
package sendmessage

import (
	"context"
	"errors"
	"fmt"

	"github.com/leadflowhq/leadflow/pkg/protocol"
	"github.com/leadflowhq/leadflow/pkg/template"
	"github.com/leadflowhq/leadflow/pkg/whatsapp"
)

const ActionID = "send_message"

type Action struct {
	Instance string
	Message  string

	sender whatsapp.Sender
}

type Factory struct {
	sender whatsapp.Sender
}

// NewActionFactory creates the send_message factory bound to a WhatsApp
// sender.
func NewActionFactory(sender whatsapp.Sender) *Factory {
	return &Factory{sender: sender}
}

func (f *Factory) ID() string {
	return ActionID
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	instance, _ := config["instance"].(string)
	message, _ := config["message"].(string)

	if instance == "" {
		return nil, errors.New("send_message action requires an instance")
	}

	if message == "" {
		return nil, errors.New("send_message action requires a message")
	}

	return &Action{
		Instance: instance,
		Message:  message,
		sender:   f.sender,
	}, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext) (any, error) {
	if actionCtx.Lead.Phone == "" {
		return nil, fmt.Errorf("lead %s has no phone number", actionCtx.Lead.ID)
	}

	message := a.Message
	if template.NeedsTemplating(message) {
		rendered, err := template.RenderWithLead(message, actionCtx.Lead, actionCtx.Execution)
		if err != nil {
			return nil, fmt.Errorf("failed to render message: %w", err)
		}

		message = rendered
	}

	actionCtx.Logger.InfoContext(ctx, "Sending WhatsApp message",
		"instance", a.Instance,
		"lead_id", actionCtx.Lead.ID)

	err := a.sender.SendText(ctx, a.Instance, actionCtx.Lead.Phone, message)
	if err != nil {
		return nil, err
	}

	return map[string]any{"sent_to": actionCtx.Lead.Phone}, nil
}
