package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vonshlovens/roomboard/internal/canvas"
	"github.com/vonshlovens/roomboard/internal/config"
	"github.com/vonshlovens/roomboard/internal/db"
	"github.com/vonshlovens/roomboard/internal/httpapi"
	"github.com/vonshlovens/roomboard/internal/inbox"
	"github.com/vonshlovens/roomboard/internal/metrics"
	"github.com/vonshlovens/roomboard/internal/sync"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "roomboard",
		Short:   "Spatial canvas server backed by Postgres",
		Long:    `Serves a spatial canvas of items, folders, rooms and areas, persists it to PostgreSQL and imports notes dropped into an inbox folder.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		serveCmd(),
		statusCmd(),
		migrateCmd(),
		initCmd(),
		importCmd(),
		pushCmd(),
		purgeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the set of collaborators every board command needs
type app struct {
	cfg   *config.Config
	db    *db.DB
	state *sync.StateTracker
	board *canvas.Board
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	database, err := db.New(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	state, err := sync.NewStateTracker(cfg.Database.Schema)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open sync state: %w", err)
	}

	return &app{
		cfg:   cfg,
		db:    database,
		state: state,
		board: canvas.NewBoard(),
	}, nil
}

func (a *app) Close() {
	if err := a.state.Save(); err != nil {
		slog.Warn("failed to save state", "error", err)
	}
	a.db.Close()
}

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the canvas server",
		Long:  `Loads the board from the database, serves the HTTP API, pushes local changes back and watches the inbox folder.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if migrate {
				if err := a.db.RunMigrations(ctx); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
			}

			reg := prometheus.NewRegistry()
			collector := metrics.NewCollector(reg)
			unwatch := collector.WatchBoard(a.board)
			defer unwatch()

			engine := sync.NewEngine(a.board, a.db, a.state, a.cfg.Sync, sync.WithObserver(collector))
			if err := engine.Bootstrap(ctx); err != nil {
				return fmt.Errorf("failed to load board: %w", err)
			}
			engine.Start(ctx)

			inboxDone := make(chan struct{})
			if a.cfg.Inbox.Path != "" {
				importer := inbox.New(a.board, a.state, a.cfg.Inbox, a.cfg.Sync.Debounce(),
					inbox.WithRecorder(collector))
				go func() {
					defer close(inboxDone)
					if _, err := importer.ImportDir(ctx); err != nil {
						slog.Error("inbox scan failed", "error", err)
					}
					if err := importer.Run(ctx); err != nil {
						slog.Error("inbox watcher failed", "error", err)
					}
				}()
			} else {
				close(inboxDone)
			}

			srv := &http.Server{
				Addr: a.cfg.Server.Addr,
				Handler: httpapi.NewRouter(&httpapi.Deps{
					Board:      a.board,
					Session:    a.cfg.Canvas.SessionOptions(),
					Recorder:   collector,
					Metrics:    metrics.Handler(reg),
					SessionTTL: a.cfg.Server.SessionTTL(),
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				slog.Info("http server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case <-ctx.Done():
				slog.Info("shutting down")
			case err := <-serveErr:
				if err != nil {
					slog.Error("http server failed", "error", err)
				}
				stop()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http shutdown failed", "error", err)
			}
			<-inboxDone

			if err := engine.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("failed to push pending changes: %w", err)
			}
			if n := engine.RetryQueueLen(); n > 0 {
				slog.Warn("entities left unsynced", "count", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "run pending migrations before serving")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database and sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			database, err := db.New(ctx, &cfg.Database)
			if err != nil {
				fmt.Println("Database Status: Disconnected")
				fmt.Printf("  Error: %v\n", err)
				return nil
			}
			defer database.Close()

			status, err := database.GetStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			fmt.Println("=== Roomboard Status ===")
			fmt.Printf("Database Status: Connected\n")
			fmt.Printf("  Host: %s\n", cfg.Database.Host)
			fmt.Printf("  Database: %s\n", cfg.Database.Database)
			fmt.Printf("  Schema: %s\n", cfg.Database.Schema)
			fmt.Println()
			fmt.Printf("Server Address: %s\n", cfg.Server.Addr)
			if cfg.Inbox.Path != "" {
				fmt.Printf("Inbox Path: %s\n", cfg.Inbox.Path)
			}
			fmt.Println()
			fmt.Printf("Stored Board:\n")
			fmt.Printf("  Items: %d\n", status.TotalItems)
			statuses := make([]string, 0, len(status.ItemsBy))
			for s := range status.ItemsBy {
				statuses = append(statuses, s)
			}
			sort.Strings(statuses)
			for _, s := range statuses {
				fmt.Printf("    %s: %d\n", s, status.ItemsBy[s])
			}
			fmt.Printf("  Rooms: %d\n", status.Rooms)
			fmt.Printf("  Folders: %d\n", status.TotalFolders)
			if status.LastSyncTime != nil {
				fmt.Printf("  Last Sync: %s\n", status.LastSyncTime.Format(time.RFC3339))
			}

			state, err := sync.NewStateTracker(cfg.Database.Schema)
			if err == nil {
				fmt.Println()
				fmt.Printf("Local State:\n")
				fmt.Printf("  Tracked Entities: %d\n", state.EntityCount())
				fmt.Printf("  Imported Files: %d\n", state.FileCount())
				if t := state.LastFullPush(); t != nil {
					fmt.Printf("  Last Full Push: %s\n", t.Format(time.RFC3339))
				}
			}

			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	var showStatus bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Runs all pending database migrations embedded in the binary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			database, err := db.New(ctx, &cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer database.Close()

			if showStatus {
				return database.MigrationStatus(ctx)
			}

			if err := database.RunMigrations(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Println("Migrations completed successfully.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&showStatus, "status", false, "print migration status instead of migrating")
	return cmd
}

func initCmd() *cobra.Command {
	var (
		name      string
		host      string
		port      int
		user      string
		database  string
		sslMode   string
		inboxPath string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file",
		Long:  `Writes a config file with default canvas and sync settings to the config directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			cfg.Name = name
			cfg.Database.Host = host
			cfg.Database.Port = port
			cfg.Database.User = user
			cfg.Database.Password = "${DB_PASSWORD}"
			cfg.Database.Database = database
			cfg.Database.Schema = config.SanitizeIdentifier(name)
			cfg.Database.SSLMode = sslMode
			cfg.Inbox.Path = inboxPath

			if inboxPath != "" {
				if _, err := os.Stat(inboxPath); os.IsNotExist(err) {
					return fmt.Errorf("inbox path does not exist: %s", inboxPath)
				}
			}

			configDir, err := config.GetStateDir()
			if err != nil {
				return err
			}
			configPath := filepath.Join(configDir, "config.yaml")
			if cfgFile != "" {
				configPath = cfgFile
			}

			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
			}

			content, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			if err := os.WriteFile(configPath, content, 0600); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			fmt.Printf("Config file written to: %s\n", configPath)
			fmt.Printf("\nIMPORTANT: Set the DB_PASSWORD environment variable before running roomboard.\n")
			fmt.Println("\nTo test the connection, run: roomboard status")
			fmt.Println("To run migrations, run: roomboard migrate")
			fmt.Println("To start the server, run: roomboard serve")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "roomboard", "board name, also the default schema")
	cmd.Flags().StringVar(&host, "host", "localhost", "database host")
	cmd.Flags().IntVar(&port, "port", 5432, "database port")
	cmd.Flags().StringVar(&user, "user", "postgres", "database user")
	cmd.Flags().StringVar(&database, "database", "roomboard", "database name")
	cmd.Flags().StringVar(&sslMode, "sslmode", "require", "database SSL mode")
	cmd.Flags().StringVar(&inboxPath, "inbox", "", "inbox folder to import notes from")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [dir]",
		Short: "Import the inbox folder once",
		Long:  `Imports every file of the inbox folder (or the given directory) as inbox items and pushes them to the database.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			inboxCfg := a.cfg.Inbox
			if len(args) == 1 {
				inboxCfg.Path = args[0]
			}
			if inboxCfg.Path == "" {
				return errors.New("no inbox folder configured")
			}

			engine := sync.NewEngine(a.board, a.db, a.state, a.cfg.Sync)
			if err := engine.Bootstrap(ctx); err != nil {
				return fmt.Errorf("failed to load board: %w", err)
			}

			importer := inbox.New(a.board, a.state, inboxCfg, a.cfg.Sync.Debounce())
			summary, err := importer.ImportDir(ctx)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			if err := engine.PushPending(ctx); err != nil {
				return fmt.Errorf("push failed: %w", err)
			}

			fmt.Printf("Import completed: %d created, %d updated, %d unchanged, %d skipped, %d failed\n",
				summary[inbox.ResultCreated], summary[inbox.ResultUpdated], summary[inbox.ResultUnchanged],
				summary[inbox.ResultSkipped], summary[inbox.ResultError])
			return nil
		},
	}
}

func pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Push the whole board to the database",
		Long:  `Loads the stored board and writes every entity back in batches. Use this after restoring a database or changing its schema.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			engine := sync.NewEngine(a.board, a.db, a.state, a.cfg.Sync)
			if err := engine.Bootstrap(ctx); err != nil {
				return fmt.Errorf("failed to load board: %w", err)
			}
			if err := engine.FullPush(ctx); err != nil {
				return fmt.Errorf("push failed: %w", err)
			}

			fmt.Println("Push completed successfully.")
			return nil
		},
	}
}

func purgeCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete long-trashed items",
		Long:  `Permanently deletes items that have been in the trash for longer than the given age.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.db.PurgeTrash(ctx, time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			for _, id := range ids {
				a.state.RemoveEntity(id)
			}

			fmt.Printf("Purged %d items.\n", len(ids))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "minimum time in the trash")
	return cmd
}
