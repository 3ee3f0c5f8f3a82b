package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/surgicast/surgicast/internal/config"
	"github.com/surgicast/surgicast/internal/domain/dashboard"
	"github.com/surgicast/surgicast/internal/domain/forecast"
	"github.com/surgicast/surgicast/internal/domain/healthrecord"
	"github.com/surgicast/surgicast/internal/domain/profile"
	"github.com/surgicast/surgicast/internal/domain/session"
	"github.com/surgicast/surgicast/internal/domain/surgery"
	"github.com/surgicast/surgicast/internal/platform/auth"
	"github.com/surgicast/surgicast/internal/platform/blobstore"
	"github.com/surgicast/surgicast/internal/platform/db"
	"github.com/surgicast/surgicast/internal/platform/middleware"
	"github.com/surgicast/surgicast/internal/platform/notice"
	"github.com/surgicast/surgicast/migrations"
)

// defaultIssuer names the built-in provider in the tokens it issues.
const defaultIssuer = "surgicast"

func main() {
	rootCmd := &cobra.Command{
		Use:   "surgicast-server",
		Short: "SurgiCast dashboard API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func withMigrator(fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	sqlDB, err := db.OpenSQL(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return fn(context.Background(), db.NewMigrator(sqlDB, migrations.FS))
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				version, err := m.Up(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Database at version %d.\n", version)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				return m.Status(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				version, err := m.Down(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Rolled back to version %d.\n", version)
				return nil
			})
		},
	})

	return cmd
}

// readPassword reads a line from the terminal without echo.
var readPassword = term.ReadPassword

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts of the built-in identity provider",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with a profile of any role, including admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			role, _ := cmd.Flags().GetString("role")
			if err := validateUserFlags(email, name, role); err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.ResolvedAuthMode() != "standalone" {
				return fmt.Errorf("accounts can only be created in standalone auth mode")
			}

			fmt.Print("Password: ")
			pw, err := readPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			provider := newLocalProvider(cfg, pool, auth.NewMemoryRevocationStore())
			profiles := profile.NewService(profile.NewRepoPG(pool), nil)
			id, err := createUser(ctx, provider, profiles, email, string(pw), name, role)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s account %s (%s).\n", role, email, id)
			return nil
		},
	}
	createCmd.Flags().String("email", "", "Account email")
	createCmd.Flags().String("name", "", "Full name")
	createCmd.Flags().String("role", profile.RoleAdmin, "Profile role: patient, surgeon or admin")

	cmd.AddCommand(createCmd)
	return cmd
}

func validateUserFlags(email, name, role string) error {
	if email == "" {
		return fmt.Errorf("--email is required")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("--name is required")
	}
	if !profile.ValidRoles[role] {
		return fmt.Errorf("--role must be patient, surgeon or admin, got %q", role)
	}
	return nil
}

// profileCreator is the profile call createUser needs.
type profileCreator interface {
	Create(ctx context.Context, p *profile.Profile) error
}

func createUser(ctx context.Context, provider auth.Provider, profiles profileCreator, email, password, name, role string) (string, error) {
	grant, err := provider.SignUp(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("create identity: %w", err)
	}
	p := &profile.Profile{ID: grant.IdentityID, Email: grant.Email, FullName: strings.TrimSpace(name), Role: role}
	if err := profiles.Create(ctx, p); err != nil {
		return "", fmt.Errorf("create profile: %w", err)
	}
	return grant.IdentityID.String(), nil
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newRedis returns nil when no URL is configured; callers fall back to
// in-memory stores.
func newRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func standaloneIssuer(cfg *config.Config) string {
	if cfg.AuthIssuer != "" {
		return cfg.AuthIssuer
	}
	return defaultIssuer
}

func newLocalProvider(cfg *config.Config, pool *pgxpool.Pool, revocations auth.RevocationStore) *auth.LocalProvider {
	return auth.NewLocalProvider(auth.NewCredentialStorePG(pool), revocations,
		[]byte(cfg.AuthSigningKey), standaloneIssuer(cfg), cfg.AuthTokenTTL)
}

// app holds the process-wide services built once at startup.
type app struct {
	cfg         *config.Config
	logger      zerolog.Logger
	pool        *pgxpool.Pool
	redis       *redis.Client
	revocations auth.RevocationStore
	counter     middleware.Counter

	env      session.Env
	spaces   *dashboard.Workspaces
	profiles *profile.Service
	records  *healthrecord.Service
	cases    *surgery.Service
	forecast *forecast.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client) (*app, error) {
	a := &app{cfg: cfg, logger: logger, pool: pool, redis: rdb}

	var flags notice.FlagStore
	if rdb != nil {
		a.revocations = auth.NewRedisRevocationStore(rdb)
		a.counter = middleware.NewRedisCounter(rdb)
		flags = notice.NewRedisFlags(rdb)
	} else {
		a.revocations = auth.NewMemoryRevocationStore()
		a.counter = middleware.NewMemoryCounter()
		flags = notice.NewMemoryFlags()
	}

	var provider auth.Provider
	if cfg.ResolvedAuthMode() == "standalone" {
		provider = newLocalProvider(cfg, pool, a.revocations)
	} else {
		provider = auth.NewExternalProvider(a.revocations)
	}

	var pictures blobstore.Presigner
	if cfg.S3Enabled() {
		p, err := blobstore.NewS3Presigner(ctx, blobstore.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 presigner: %w", err)
		}
		pictures = p
	}
	a.profiles = profile.NewService(profile.NewRepoPG(pool), pictures)

	notices := notice.NewCenter(flags, logger)
	store := session.NewStore(provider, a.profiles, notices, logger)
	a.env = session.Env{Store: store, Notices: notices, Logger: logger}

	a.records = healthrecord.NewService(healthrecord.NewStoresPG(pool), logger)
	a.spaces = dashboard.NewWorkspaces(store, a.records.NewEditor, logger)
	a.cases = surgery.NewService(surgery.NewRepoPG(pool), logger)
	a.forecast = forecast.NewService(forecast.NewEstimator(cfg.PredictorURL, logger), forecast.NewVelocityRepoPG(pool))
	return a, nil
}

func (a *app) jwtConfig() auth.JWTConfig {
	jc := auth.JWTConfig{
		Audience:    a.cfg.AuthAudience,
		Revocations: a.revocations,
		Optional:    true,
	}
	if a.cfg.ResolvedAuthMode() == "standalone" {
		jc.Issuer = standaloneIssuer(a.cfg)
		jc.SigningKey = []byte(a.cfg.AuthSigningKey)
	} else {
		jc.Issuer = a.cfg.AuthIssuer
		jc.JWKSURL = a.cfg.AuthJWKSURL
	}
	return jc
}

// router builds the echo server with every route mounted.
func (a *app) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = a.cfg.IsDev()

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  a.cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID", session.HeaderSessionID},
		ExposeHeaders: []string{session.HeaderSessionID, "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	var checks []db.Check
	if a.redis != nil {
		checks = append(checks, db.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}})
	}
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool, checks...))
	}

	api := e.Group("/api/v1", auth.JWTMiddleware(a.jwtConfig()), session.Middleware(a.env.Store))

	authLimit := middleware.RateLimit(a.counter, middleware.DefaultAuthRateLimit())
	session.NewHandler(a.env).RegisterRoutes(api, authLimit)
	dashboard.NewHandler(a.env.Store, a.spaces).RegisterRoutes(api)
	profile.NewHandler(a.profiles, a.env.Store).RegisterRoutes(api)
	healthrecord.NewHandler(a.records, a.spaces).RegisterRoutes(api)
	surgery.NewHandler(a.cases).RegisterRoutes(api)
	forecast.NewHandler(a.forecast).RegisterRoutes(api)

	return e
}

// startConsumer runs the case status consumer until ctx is done.
func (a *app) startConsumer(ctx context.Context) {
	if !a.cfg.KafkaEnabled() {
		a.logger.Info().Msg("KAFKA_BROKERS not set, case status consumer disabled")
		return
	}
	reader := surgery.NewKafkaReader(a.cfg.KafkaBrokers, a.cfg.KafkaCaseTopic, a.cfg.KafkaGroupID)
	consumer := surgery.NewConsumer(reader, a.cases, a.logger)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			a.logger.Error().Err(err).Msg("case status consumer stopped")
		}
	}()
	a.logger.Info().Strs("brokers", a.cfg.KafkaBrokers).Str("topic", a.cfg.KafkaCaseTopic).Msg("case status consumer started")
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Info().Str("auth_mode", cfg.ResolvedAuthMode()).Str("env", cfg.Env).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	rdb, err := newRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if rdb != nil {
		defer rdb.Close()
		logger.Info().Msg("connected to redis")
	} else {
		logger.Warn().Msg("REDIS_URL not set, using in-memory notice flags, revocations and rate limits")
	}

	a, err := newApp(ctx, cfg, logger, pool, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize services")
	}
	defer a.spaces.Close()
	if !cfg.S3Enabled() {
		logger.Warn().Msg("S3_BUCKET not set, profile picture uploads disabled")
	}

	a.startConsumer(ctx)
	go a.env.Store.RunSweeper(ctx, cfg.SessionIdleTTL, time.Minute)

	e := a.router()
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
