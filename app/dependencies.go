package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/order-processing/auth"
	"github.com/upb/order-processing/config"
	"github.com/upb/order-processing/internal/observability"
	"github.com/upb/order-processing/middleware"
	"github.com/upb/order-processing/repositories"
	"github.com/upb/order-processing/repositories/postgres"
	"github.com/upb/order-processing/services"
	"github.com/upb/order-processing/tokens"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Collector

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	TxManager repositories.TransactionManager

	// Services
	UserService *services.UserService

	// Auth
	Policies       *tokens.PolicyStore
	Codec          *tokens.Codec
	Authenticator  *auth.Authenticator
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies opens the database and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesWithFactory(ctx, cfg, logger, factory)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithFactory wires dependencies over an existing repository factory
func NewDependenciesWithFactory(ctx context.Context, cfg *config.Config, logger *zap.Logger, factory *postgres.RepositoryFactory) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		Metrics:     observability.NewCollector(),
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	if cfg.Database.InitSchema {
		if err := deps.DB.InitSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	deps.initRepositories()

	if err := deps.initAuth(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.TxManager = d.RepoFactory.GetTransactionManager()
	d.UserService = services.NewUserService(d.Users, d.Logger)

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	policy, err := cfg.JWT.Policy()
	if err != nil {
		return err
	}
	d.Policies, err = tokens.NewPolicyStore(policy)
	if err != nil {
		return err
	}

	d.Codec = tokens.NewCodec()
	basic := auth.NewBasicValidator(d.UserService, cfg.Auth.StoreTimeout, d.Logger)
	d.Authenticator = auth.NewAuthenticator(d.Policies, d.Codec, basic, d.Logger,
		auth.WithRecorder(d.Metrics),
		auth.WithExtractor(auth.NewExtractor(cfg.Auth.TokenHeader)),
	)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Authenticator, d.Logger).
		WithRecorder(d.Metrics).
		WithTokenHeader(cfg.Auth.TokenHeader)

	d.Logger.Info("auth initialized", zap.Object("policy", policy))
	return nil
}

// ReloadPolicy swaps in the signing policy from a reloaded configuration.
// Requests already in flight keep the snapshot they started with. Other
// settings take effect on restart.
func (d *Dependencies) ReloadPolicy(cfg *config.Config) error {
	policy, err := cfg.JWT.Policy()
	if err == nil {
		_, err = d.Policies.Swap(policy)
	}
	d.Metrics.RecordPolicyReload(err == nil)
	if err != nil {
		return fmt.Errorf("failed to reload signing policy: %w", err)
	}

	d.Logger.Info("signing policy reloaded", zap.Object("policy", policy))
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}
