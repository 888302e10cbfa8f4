// Package main provides a small operational CLI for poking the flow engine:
// publishing synthetic lead events and forcing the daily date sweep.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/leadflowhq/leadflow/pkg/log"
)

func main() {
	cmd := &cli.Command{
		Name:                  "leadflow-trigger",
		Usage:                 "Publish lead events and trigger engine maintenance tasks",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			{
				Name:    "publish",
				Aliases: []string{"p"},
				Usage:   "Publish a synthetic lead event to the event bus",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "event-type",
						Usage:    "Lead event type (lead.created, lead.tag_added, lead.tag_removed, lead.stage_changed, lead.field_changed)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "lead-id",
						Usage:    "Lead the event is about",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "tag-id",
						Usage: "Tag ID for tag events",
					},
					&cli.StringFlag{
						Name:  "stage-id",
						Usage: "Stage ID for stage_changed events",
					},
					&cli.StringFlag{
						Name:  "field",
						Usage: "Field name for field_changed events",
					},
					&cli.StringFlag{
						Name:  "value",
						Usage: "New field value for field_changed events",
					},
					&cli.StringFlag{
						Name:    "event-bus",
						Usage:   "Event bus type (kafka, gochannel)",
						Value:   "kafka",
						Sources: cli.EnvVars("EVENT_BUS_TYPE"),
					},
					&cli.StringFlag{
						Name:    "log-level",
						Usage:   "Log level (debug, info, warn, error)",
						Value:   "info",
						Sources: cli.EnvVars("LOG_LEVEL"),
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))

					return PublishLeadEvent(ctx, command)
				},
			},
			{
				Name:  "sweep",
				Usage: "Run the date trigger sweep once against the given database",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "database-url",
						Usage:    "Database connection URL for persistence",
						Required: true,
						Sources:  cli.EnvVars("DATABASE_URL"),
					},
					&cli.StringFlag{
						Name:    "log-level",
						Usage:   "Log level (debug, info, warn, error)",
						Value:   "info",
						Sources: cli.EnvVars("LOG_LEVEL"),
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))

					return RunDateSweep(ctx, command)
				},
			},
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
