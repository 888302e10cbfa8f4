package cmd

import (
	"log/slog"

	"github.com/leadflowhq/leadflow/pkg/actions/httprequest"
	"github.com/leadflowhq/leadflow/pkg/actions/sendmessage"
	"github.com/leadflowhq/leadflow/pkg/actions/updatelead"
	"github.com/leadflowhq/leadflow/pkg/config"
	"github.com/leadflowhq/leadflow/pkg/eventbus"
	"github.com/leadflowhq/leadflow/pkg/persistence"
	"github.com/leadflowhq/leadflow/pkg/registry"
	"github.com/leadflowhq/leadflow/pkg/whatsapp"
)

// NewRegistry builds the action registry used by the node processor. The
// update_lead action publishes follow-up lead events through the given
// publisher so one flow's mutations can trigger another.
func NewRegistry(
	logger *slog.Logger,
	p persistence.Persistence,
	publisher eventbus.EventPublisher,
	whatsappConfig config.WhatsAppConfig,
) *registry.Registry {
	reg := registry.NewRegistry(logger)

	sender := whatsapp.NewClient(whatsappConfig.BaseURL, whatsappConfig.APIKey)

	reg.RegisterAction(sendmessage.NewActionFactory(sender))
	reg.RegisterAction(httprequest.NewActionFactory())
	reg.RegisterAction(updatelead.NewActionFactory(p.Leads(), publisher))

	return reg
}
