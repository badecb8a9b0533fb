package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"swpmbridge/config"
	"swpmbridge/database"
	"swpmbridge/handlers"
	"swpmbridge/routes"
	"swpmbridge/services"
	"swpmbridge/utils"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "swpmbridge",
	Short: "WPForms to Simple Membership bridge service",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for the form host or an administrator",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		return issueToken(cmd, role, subject, ttl)
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-logs",
	Short: "Delete activity logs older than the retention period and expired form errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cleanupOnce()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml)")
	tokenCmd.Flags().String("role", utils.RoleFormHost, "token role: form_host or admin")
	tokenCmd.Flags().String("subject", "wpforms", "token subject")
	tokenCmd.Flags().Duration("ttl", 365*24*time.Hour, "token lifetime")
	rootCmd.AddCommand(serveCmd, tokenCmd, cleanupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app 組好的服務
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	activity   *services.ActivityLogger
	transients *services.TransientStore
	handler    *handlers.Handler
}

func newApp(cfg *config.Config, logger *zap.Logger, db *gorm.DB) *app {
	settings := cfg.Settings
	hooks := services.NewHooks()
	activity := services.NewActivityLogger(db, logger, settings.LogLevel)
	accounts := services.NewAccountService(db)
	store := services.NewMembershipStore(db, accounts, hooks, activity, settings)
	passwords := services.NewPasswordService(services.NewMailer(cfg.SMTP, logger), hooks, activity, cfg.Site.Name, cfg.LoginURL())
	duplicates := services.NewDuplicateResolver(store)
	transients := services.NewTransientStore(db)
	forms := services.NewFormService(db)

	submissions := services.NewSubmissionHandler(services.SubmissionDeps{
		Settings:   settings,
		Builder:    services.NewRecordBuilder(passwords, settings.DefaultMembershipLevel),
		Validator:  services.NewValidator(store, hooks),
		Duplicates: duplicates,
		Router:     services.NewActionRouter(store, duplicates),
		Store:      store,
		Sessions:   services.NewSessionService(cfg.JWT.Secret, cfg.JWT.SessionTTL, accounts, store),
		Stash:      services.NewErrorStash(transients),
		Hooks:      hooks,
		Activity:   activity,
	})

	return &app{
		cfg:        cfg,
		logger:     logger,
		activity:   activity,
		transients: transients,
		handler: handlers.New(handlers.Deps{
			Forms:        forms,
			Submissions:  submissions,
			Store:        store,
			Activity:     activity,
			Logger:       logger,
			SecureCookie: cfg.Server.GinMode == gin.ReleaseMode,
		}),
	}
}

// bootstrap 載入設定、建立 logger 與資料庫連線
func bootstrap() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Error("Failed to initialize database", zap.Error(err))
		return nil, nil, nil, err
	}
	return cfg, logger, db, nil
}

func serve() error {
	cfg, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// 執行資料庫遷移
	if err := database.Migrate(db); err != nil {
		logger.Error("Database migration failed", zap.Error(err))
		return err
	}
	logger.Info("Database migration completed")

	a := newApp(cfg, logger, db)

	// 啟動定時任務
	c := cron.New()
	if _, err := c.AddFunc("@daily", func() { a.cleanup(context.Background()) }); err != nil {
		logger.Error("Failed to schedule log cleanup", zap.Error(err))
		return err
	}
	c.Start()
	defer c.Stop()
	logger.Info("Cron jobs started")

	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), routes.RequestLogger(logger))

	// 創建一個 API 路由組
	api := r.Group("/api")
	{
		routes.Path(api, a.handler, []byte(cfg.JWT.Secret))
	}

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
			return err
		}
	case sig := <-quit:
		logger.Info("Shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// cleanup 清除過期的活動日誌與表單錯誤
func (a *app) cleanup(ctx context.Context) {
	deleted, err := a.activity.Cleanup(ctx, a.cfg.Settings.LogRetentionDays)
	if err != nil {
		a.logger.Error("Failed to clean up activity logs", zap.Error(err))
	}
	purged, err := a.transients.PurgeExpired(ctx)
	if err != nil {
		a.logger.Error("Failed to purge expired form errors", zap.Error(err))
	}
	a.logger.Info("Cleanup finished", zap.Int64("logs_deleted", deleted), zap.Int64("transients_purged", purged))
}

func cleanupOnce() error {
	cfg, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	newApp(cfg, logger, db).cleanup(context.Background())
	return nil
}

func issueToken(cmd *cobra.Command, role, subject string, ttl time.Duration) error {
	if role != utils.RoleAdmin && role != utils.RoleFormHost {
		return fmt.Errorf("unknown role %q", role)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	claims := utils.Claims{Role: role}
	claims.Subject = subject
	token, expiresAt, err := utils.GenerateToken([]byte(cfg.JWT.Secret), claims, ttl)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
