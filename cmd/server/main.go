package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/tentpost/internal/config"
	"github.com/tentpost/internal/db"
	"github.com/tentpost/internal/handler"
	"github.com/tentpost/internal/logging"
	"github.com/tentpost/internal/router"
	"github.com/tentpost/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	configFile string
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tentpost",
		Short:         "Versioned post store for tent entities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		userCmd(),
		ingestCmd(),
	)
	return rootCmd
}

// cliEnv 汇总各子命令共享的配置、日志与数据库连接。
type cliEnv struct {
	cfg    config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
}

func setup() (*cliEnv, error) {
	cfg := config.Load()
	if configFile != "" {
		loaded, err := config.LoadFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	gdb, err := db.Init(cfg.DatabaseDriver, cfg.DSN())
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	return &cliEnv{cfg: cfg, logger: logger, db: gdb}, nil
}

func (rt *cliEnv) close() {
	if sqlDB, err := rt.db.DB(); err == nil {
		sqlDB.Close()
	}
	rt.logger.Sync()
}

func (rt *cliEnv) pipeline() *service.Pipeline {
	return service.NewPipeline(rt.db, service.PipelineConfig{
		Logger:          rt.logger,
		BlobCompression: rt.cfg.BlobCompression,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.close()

			gin.SetMode(rt.cfg.GinMode)

			pipeline := rt.pipeline()
			accounts := service.NewAccountService(rt.db, pipeline.Mentions())
			user, err := accounts.EnsureUser(rt.cfg.BootstrapUserName, rt.cfg.BootstrapUserPassword, rt.cfg.BootstrapUserEntity)
			if err != nil {
				return err
			}
			if user != nil {
				rt.logger.Info("bootstrap user ready", zap.String("username", user.Username), zap.String("entity", user.Entity))
			}

			engine := router.SetupRouter(handler.NewAPI(pipeline, accounts, rt.logger), rt.cfg.SessionSecret, rt.logger)
			server := &http.Server{
				Addr:              rt.cfg.ListenAddr,
				Handler:           engine,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("server listening", zap.String("addr", rt.cfg.ListenAddr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			rt.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.close()
			rt.logger.Info("database migrated", zap.String("driver", rt.cfg.DatabaseDriver))
			return nil
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <username> <password> <entity>",
		Short: "Create an account bound to an entity if it does not exist",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.close()

			accounts := service.NewAccountService(rt.db, service.NewMentionGraph(rt.db))
			user, err := accounts.EnsureUser(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			if user == nil {
				return errors.New("username, password and entity are required")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s -> %s\n", user.Username, user.Entity)
			return nil
		},
	})
	return cmd
}

func ingestCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "ingest <envelope.json>",
		Short: "Ingest a post envelope and print its projection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var env service.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				return fmt.Errorf("parse envelope: %w", err)
			}

			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.close()

			pipeline := rt.pipeline()
			user, err := service.NewAccountService(rt.db, pipeline.Mentions()).CurrentUserByName(username)
			if err != nil {
				return fmt.Errorf("user %q: %w", username, err)
			}

			post, err := pipeline.CreateFromEnvelope(cmd.Context(), env, user)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(service.ProjectPost(post))
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "account that owns the post")
	cmd.MarkFlagRequired("user")
	return cmd
}
