// Package admin implements petmatchctl, the operator tool for a petmatch
// deployment: schema migrations, push notification checks and maintenance
// of the similarity index.
package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/petmatch/internal/logging"
	"github.com/dmitrijs2005/petmatch/internal/server/config"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/dmitrijs2005/petmatch/internal/server/push"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/petmatch/internal/server/services"
	"github.com/dmitrijs2005/petmatch/internal/server/similarity"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type Migrator interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	MigrationVersion(ctx context.Context, db *sql.DB) (int64, error)
}

type TestSender interface {
	SendTest(ctx context.Context, userID string) models.Delivery
}

type IndexAdmin interface {
	Health(ctx context.Context) (map[string]any, error)
	Metrics(ctx context.Context) (map[string]any, error)
	Delete(ctx context.Context, vectorID string) error
}

// Dependencies are built on first use by the root command. Fields that are
// already set are left alone.
type Dependencies struct {
	Config   *config.Config
	Out      io.Writer
	DB       *sql.DB
	Migrator Migrator
	Notifier TestSender
	Index    IndexAdmin
}

var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func (d *Dependencies) init(ctx context.Context) error {
	logger := logging.NewJSON(io.Discard, d.Config.LogLevel)
	if d.Config.LogLevel == "debug" {
		logger = logging.NewJSON(d.Out, d.Config.LogLevel)
	}

	if d.DB == nil {
		db, err := openDB(d.Config.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("db open error: %w", err)
		}
		d.DB = db
	}
	if d.Migrator == nil || d.Notifier == nil {
		rm, err := repomanager.NewPostgresRepositoryManager(d.DB)
		if err != nil {
			return err
		}
		if d.Migrator == nil {
			d.Migrator = rm
		}
		if d.Notifier == nil {
			gw := push.NewExpoGateway(d.Config.ExpoPushURL, d.Config.ExpoAccessToken)
			d.Notifier = services.NewNotificationService(d.DB, rm, gw, logger)
		}
	}
	if d.Index == nil {
		d.Index = similarity.New(d.Config.SimilarityURL, d.Config.SimilarityTimeout, logger)
	}
	return nil
}

func (d *Dependencies) close() {
	if d.DB != nil {
		_ = d.DB.Close()
		d.DB = nil
	}
}

// NewRootCmd builds the petmatchctl command tree over deps.
func NewRootCmd(deps *Dependencies) *cobra.Command {
	root := &cobra.Command{
		Use:           "petmatchctl",
		Short:         "Administration tool for the petmatch server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return deps.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			deps.close()
		},
	}

	c := deps.Config
	root.PersistentFlags().StringVar(&c.DatabaseDSN, "database-url", c.DatabaseDSN, "PostgreSQL DSN")
	root.PersistentFlags().StringVar(&c.SimilarityURL, "similarity-url", c.SimilarityURL, "similarity service URL")
	root.PersistentFlags().StringVar(&c.ExpoPushURL, "expo-url", c.ExpoPushURL, "Expo push URL")
	root.PersistentFlags().StringVar(&c.ExpoAccessToken, "expo-token", c.ExpoAccessToken, "Expo access token")
	root.PersistentFlags().StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level, debug prints service logs")

	root.AddCommand(cmdMigrate(deps))
	root.AddCommand(cmdNotifyTest(deps))
	root.AddCommand(cmdSimilarity(deps))

	return root
}

func cmdMigrate(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deps.Migrator.RunMigrations(cmd.Context(), deps.DB); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			v, err := deps.Migrator.MigrationVersion(cmd.Context(), deps.DB)
			if err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			fmt.Fprintf(deps.Out, "schema is at version %d\n", v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := deps.Migrator.MigrationVersion(cmd.Context(), deps.DB)
			if err != nil {
				return fmt.Errorf("migrate version: %w", err)
			}
			fmt.Fprintln(deps.Out, v)
			return nil
		},
	})

	return cmd
}

func cmdNotifyTest(deps *Dependencies) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test push notification to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := deps.Notifier.SendTest(cmd.Context(), strings.TrimSpace(userID))
			if !d.Delivered {
				return fmt.Errorf("notification not delivered: %s", d.Reason)
			}
			fmt.Fprintf(deps.Out, "delivered to %s\n", userID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func cmdSimilarity(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similarity",
		Short: "Inspect and maintain the similarity index",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Print the similarity service health document",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := deps.Index.Health(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(deps.Out, doc)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "metrics",
		Short: "Print index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := deps.Index.Metrics(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(deps.Out, doc)
		},
	})

	var vectorID string
	forget := &cobra.Command{
		Use:   "forget",
		Short: "Remove one vector from the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deps.Index.Delete(cmd.Context(), vectorID); err != nil {
				return err
			}
			fmt.Fprintf(deps.Out, "vector %s removed\n", vectorID)
			return nil
		},
	}
	forget.Flags().StringVar(&vectorID, "vector-id", "", "Vector id (required)")
	_ = forget.MarkFlagRequired("vector-id")
	cmd.AddCommand(forget)

	return cmd
}

// printJSON indents the document when w is a terminal and writes it on a
// single line otherwise, so output piped into jq stays compact.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
