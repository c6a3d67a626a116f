package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-extras/cobraflags"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/alex-rublevsky/rublevsky-studio/internal/app"
	"github.com/alex-rublevsky/rublevsky-studio/internal/auth"
	"github.com/alex-rublevsky/rublevsky-studio/internal/config"
	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/event"
	"github.com/alex-rublevsky/rublevsky-studio/internal/migrations"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository/postgres"
	redisrepo "github.com/alex-rublevsky/rublevsky-studio/internal/repository/redis"
	"github.com/alex-rublevsky/rublevsky-studio/internal/seed"
	"github.com/alex-rublevsky/rublevsky-studio/internal/service"
	pkgconfig "github.com/alex-rublevsky/rublevsky-studio/pkg/config"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/database"
	pkgkafka "github.com/alex-rublevsky/rublevsky-studio/pkg/kafka"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/logger"
)

// adminPasswordEnv supplies the create-admin password when --password is
// omitted, keeping it out of shell history.
const adminPasswordEnv = "STOREFRONT_ADMIN_PASSWORD"

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront and admin API for the studio shop",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return pkgconfig.LoadDotEnv(envFile)
		},
		RunE: runServe,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional KEY=VALUE file loaded before the environment is read")

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSeedCommand(),
		newCreateAdminCommand(),
	)
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and event consumers (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(commandContext(cmd), func(ctx context.Context, _ *config.Config, log *slog.Logger, pool *pgxpool.Pool) error {
				return database.RunMigrations(ctx, pool, migrations.FS, log)
			})
		},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample categories, products and posts; existing rows are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(commandContext(cmd), func(ctx context.Context, cfg *config.Config, log *slog.Logger, pool *pgxpool.Pool) error {
				rdb, err := database.NewRedisClient(ctx, cfg.Redis())
				if err != nil {
					return fmt.Errorf("connect to redis: %w", err)
				}
				defer rdb.Close()

				productRepo := postgres.NewProductRepository(pool)
				productCache := redisrepo.NewProductCache(rdb, cfg.ProductCacheTTL)
				producer := event.NewProducer(pkgkafka.NopPublisher{}, log)
				seeder := seed.New(
					service.NewCatalogService(
						postgres.NewCategoryRepository(pool),
						postgres.NewBrandRepository(pool),
						postgres.NewTeaCategoryRepository(pool),
						productCache,
						log,
					),
					service.NewProductService(productRepo, productCache, producer, log, cfg.Currency),
					service.NewBlogService(postgres.NewBlogRepository(pool), productRepo, log),
					log,
				)

				res, err := seeder.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d rows, %d already present\n", res.Created, res.Skipped)
				return nil
			})
		},
	}
}

const (
	emailFlag    = "email"
	passwordFlag = "password"
	nameFlag     = "name"
)

func newCreateAdminCommand() *cobra.Command {
	flags := map[string]cobraflags.Flag{
		emailFlag: &cobraflags.StringFlag{
			Name:  emailFlag,
			Usage: "Admin email address (required)",
		},
		passwordFlag: &cobraflags.StringFlag{
			Name:  passwordFlag,
			Usage: "Admin password, at least 8 characters; defaults to $" + adminPasswordEnv,
		},
		nameFlag: &cobraflags.StringFlag{
			Name:  nameFlag,
			Value: "Admin",
			Usage: "Display name",
		},
	}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an account with the admin role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := adminRequestFromFlags(
				flags[emailFlag].GetString(),
				flags[passwordFlag].GetString(),
				flags[nameFlag].GetString(),
			)
			if err != nil {
				return err
			}

			return withDatabase(commandContext(cmd), func(ctx context.Context, cfg *config.Config, log *slog.Logger, pool *pgxpool.Pool) error {
				svc := service.NewAuthService(
					postgres.NewUserRepository(pool),
					auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry),
					log,
				)
				return createAdmin(ctx, svc, req, cmd.OutOrStdout())
			})
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

type adminRequest struct {
	email    string
	password string
	name     string
}

// adminRequestFromFlags validates create-admin input before any connection
// is opened.
func adminRequestFromFlags(email, password, name string) (adminRequest, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return adminRequest{}, errors.New("--email is required")
	}
	if password == "" {
		password = os.Getenv(adminPasswordEnv)
	}
	if len(password) < 8 {
		return adminRequest{}, fmt.Errorf("password must be at least 8 characters (use --password or $%s)", adminPasswordEnv)
	}
	if strings.TrimSpace(name) == "" {
		name = "Admin"
	}
	return adminRequest{email: email, password: password, name: name}, nil
}

type adminCreator interface {
	CreateAdmin(ctx context.Context, email, password, name string) (*domain.User, error)
}

func createAdmin(ctx context.Context, creator adminCreator, req adminRequest, out io.Writer) error {
	user, err := creator.CreateAdmin(ctx, req.email, req.password, req.name)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	fmt.Fprintf(out, "created admin %s (%s)\n", user.Email, user.ID)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, closer := logger.NewWithFile(config.ServiceName, cfg.LogLevel, cfg.LogFileConfig())
	defer closer.Close()

	log.Info("starting storefront",
		slog.String("version", version),
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
	)

	// Canceled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.NewApp(ctx, cfg, log, version)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		return err
	}

	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		return err
	}

	log.Info("storefront stopped")
	return nil
}

// withDatabase loads config, opens a pool and runs fn for one-shot commands.
func withDatabase(ctx context.Context, fn func(context.Context, *config.Config, *slog.Logger, *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, closer := logger.NewWithFile(config.ServiceName, cfg.LogLevel, cfg.LogFileConfig())
	defer closer.Close()

	pool, err := app.OpenPostgres(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, cfg, log, pool)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
