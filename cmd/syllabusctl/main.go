// Command syllabusctl extracts template candidates from syllabus and program
// documents, lets a reviewer group them into tabs and materializes the result
// into reusable templates.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/classify"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/export"
	"github.com/joseph-ayodele/syllabus-templates/internal/extraction"
	"github.com/joseph-ayodele/syllabus-templates/internal/grouping"
	"github.com/joseph-ayodele/syllabus-templates/internal/ingest"
	"github.com/joseph-ayodele/syllabus-templates/internal/materialize"
	repo "github.com/joseph-ayodele/syllabus-templates/internal/repository"
	"github.com/joseph-ayodele/syllabus-templates/internal/session"
)

const appName = "syllabusctl"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the services every subcommand runs against.
type app struct {
	cfg    *common.Config
	logger *slog.Logger
	db     *repo.DB
	store  *repo.Store

	sessions    *session.Service
	extraction  *extraction.Service
	groupings   *grouping.Service
	materialize *materialize.Service
	export      *export.Service
	ingestor    *ingest.FSIngestor
}

func rootCmd() *cobra.Command {
	a := &app{}
	var (
		dbURL      string
		sqlitePath string
		rulesFile  string
		logLevel   string
		actor      string
	)

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Extract, group and materialize syllabus templates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := common.LoadConfig()
			if dbURL != "" {
				cfg.Database.DSN = dbURL
			}
			if sqlitePath != "" {
				cfg.Database.SQLitePath = sqlitePath
			}
			if rulesFile != "" {
				cfg.Rules.File = rulesFile
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			ctx := common.WithRequestID(cmd.Context(), uuid.NewString())
			if actor == "" {
				actor = os.Getenv("SYLLABUS_ACTOR")
			}
			ctx = common.WithActor(ctx, actor)
			cmd.SetContext(ctx)
			return a.open(ctx, cfg, cmd.Name() == "migrate")
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	cmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "Postgres URL (overrides DB_URL)")
	cmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "SQLite file used when no Postgres URL is set (overrides SQLITE_PATH)")
	cmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "YAML classification rules file (overrides RULES_FILE)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&actor, "actor", "", "Default acting user for created_by columns (overrides SYLLABUS_ACTOR)")

	cmd.AddCommand(
		migrateCmd(a),
		extractCmd(a),
		extractDirCmd(a),
		watchCmd(a),
		sessionCmd(a),
		candidatesCmd(a),
		recleanseCmd(a),
		archiveCmd(a),
		purgeCmd(a),
		groupCmd(a),
		materializeCmd(a),
		templateCmd(a),
	)
	return cmd
}

func (a *app) open(ctx context.Context, cfg *common.Config, migrating bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})).
		With("request_id", common.RequestIDFromContext(ctx))
	slog.SetDefault(a.logger)

	rules, err := classify.LoadRuleSet(cfg.Rules.File)
	if err != nil {
		return err
	}
	classifier, lexicon, err := rules.Build()
	if err != nil {
		return err
	}

	db, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), a.logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db
	if err := repo.HealthCheck(ctx, db, 5*time.Second, a.logger); err != nil {
		return err
	}
	if cfg.Database.AutoMigrate && !migrating {
		if err := repo.Migrate(ctx, db, a.logger); err != nil {
			return err
		}
	}

	a.store = repo.NewStore(db, a.logger)
	a.sessions = session.NewService(a.logger, a.store, session.WithTTL(cfg.Session.TTL))
	extractOpts := []extraction.Option{
		extraction.WithClassifier(classifier),
		extraction.WithLexicon(lexicon),
	}
	for category, lex := range rules.CategoryLexicons() {
		extractOpts = append(extractOpts, extraction.WithCategoryLexicon(category, lex))
	}
	a.extraction = extraction.NewService(a.logger, a.sessions, extractOpts...)
	a.groupings = grouping.NewService(a.logger, a.store)
	a.materialize = materialize.NewService(a.logger, a.store, materialize.WithLexicon(lexicon))
	a.export = export.NewService(a.store.Templates, a.logger)
	a.ingestor = ingest.NewFSIngestor(a.extraction, a.logger)
	return nil
}

func (a *app) close() {
	if a.db != nil {
		repo.Close(a.db, a.logger)
		a.db = nil
	}
}

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return repo.Migrate(cmd.Context(), a.db, a.logger)
		},
	}
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseCategory(s string) (constants.Category, error) {
	if s == "" {
		return constants.CategoryGeneric, nil
	}
	cat, ok := constants.CanonicalCategory(s)
	if !ok {
		return "", common.InvalidInput("unknown category %q (want one of %v)", s, constants.CategoriesAsStrings())
	}
	return cat, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
