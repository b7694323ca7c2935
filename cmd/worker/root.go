package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aicoe-genesis/genesis-backend/config"
	"github.com/aicoe-genesis/genesis-backend/internal/bootstrap"
	"github.com/aicoe-genesis/genesis-backend/internal/events"
	"github.com/aicoe-genesis/genesis-backend/internal/jobs"
)

type rootOptions struct {
	InMemory bool
}

// appLoader builds the shared dependencies; tests swap it out.
type appLoader func(ctx context.Context, opt bootstrap.AppOptions) (*bootstrap.App, error)

func loadApp(ctx context.Context, opt bootstrap.AppOptions) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	opt.InMemory = opt.InMemory || cfg.App.InMemory
	return bootstrap.NewApp(ctx, cfg, opt)
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(loadApp)
}

func newRootCommandWith(load appLoader) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "worker",
		Short:         "Genesis maintenance and headless pipeline commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.InMemory, "in-memory", false, "use an in-process project store instead of Postgres")

	cmd.AddCommand(newMigrateCommand(load))
	cmd.AddCommand(newRunWorkflowCommand(opts, load))
	cmd.AddCommand(newGenerateArtifactCommand(opts, load))
	cmd.AddCommand(newSweepCommand(opts, load))
	return cmd
}

func newMigrateCommand(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load(cmd.Context(), bootstrap.AppOptions{Migrate: true})
			if err != nil {
				return err
			}
			defer app.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newRunWorkflowCommand(root *rootOptions, load appLoader) *cobra.Command {
	var projectID, name, brief string

	cmd := &cobra.Command{
		Use:   "run-workflow",
		Short: "Run the agent pipeline for a project and print events as JSON lines",
		Long: `Run the PM -> BA -> UX -> UI pipeline without a browser.

Pass --project to run against an existing project, or --name to create one first.

Example:
  worker run-workflow --project 6f1c... --brief "A todo app for teams"
  worker run-workflow --in-memory --name Todo --brief "A todo app for teams"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(brief) == "" {
				return fmt.Errorf("--brief is required")
			}
			if projectID == "" && name == "" {
				return fmt.Errorf("one of --project or --name is required")
			}

			ctx := cmd.Context()
			app, err := load(ctx, bootstrap.AppOptions{InMemory: root.InMemory})
			if err != nil {
				return err
			}
			defer app.Close()

			if projectID == "" {
				p, err := app.Projects.CreateProject(ctx, name, brief, "text")
				if err != nil {
					return err
				}
				projectID = p.ID
			}

			pub := app.Publisher()
			out := cmd.OutOrStdout()
			_, err = app.Orchestrator.Run(ctx, projectID, brief, func(ctx context.Context, ev events.Event) error {
				_ = pub.Publish(ctx, projectID, ev)
				if ev.Type == events.TypeAgentDelta {
					return nil
				}
				return writeJSONLine(out, ev)
			})
			return err
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "existing project id")
	cmd.Flags().StringVar(&name, "name", "", "create a new project with this name")
	cmd.Flags().StringVar(&brief, "brief", "", "project brief (required)")
	return cmd
}

func newGenerateArtifactCommand(root *rootOptions, load appLoader) *cobra.Command {
	var projectID, artifactType, conversation string

	cmd := &cobra.Command{
		Use:   "generate-artifact",
		Short: "Generate one artifact from conversation text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if projectID == "" || artifactType == "" || strings.TrimSpace(conversation) == "" {
				return fmt.Errorf("--project, --type and --context are required")
			}

			ctx := cmd.Context()
			app, err := load(ctx, bootstrap.AppOptions{InMemory: root.InMemory})
			if err != nil {
				return err
			}
			defer app.Close()

			a, err := app.Orchestrator.GenerateArtifact(ctx, projectID, artifactType, conversation)
			if err != nil {
				return err
			}
			return writeJSONLine(cmd.OutOrStdout(), a)
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&artifactType, "type", "", "vision, usecases or prototype")
	cmd.Flags().StringVar(&conversation, "context", "", "conversation text to base the artifact on")
	return cmd
}

func newSweepCommand(root *rootOptions, load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Prune expired voice sessions from the registry once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load(cmd.Context(), bootstrap.AppOptions{InMemory: root.InMemory})
			if err != nil {
				return err
			}
			defer app.Close()

			jobs.NewScheduler(app.Registry).RunSweep()
			fmt.Fprintln(cmd.OutOrStdout(), "sweep done")
			return nil
		},
	}
}

func writeJSONLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
