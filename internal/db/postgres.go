package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kestrelworks/orgvault/internal/evcs"
	"github.com/kestrelworks/orgvault/internal/logger"
	"github.com/kestrelworks/orgvault/internal/types"
	"github.com/kestrelworks/orgvault/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "orgvault", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

// AutoMigrateAll creates the head and version tables, then the partial
// unique indexes that keep at most one open snapshot per root (and per
// branch for the branch-capable tables). The indexes are where concurrent
// writers collide, so migration is not complete without them.
func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := s.db.AutoMigrate(types.AllModels()...); err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	s.log.Info("Ensuring current-snapshot unique indexes...")
	temporal := []any{
		&types.UserVersion{},
		&types.DepartmentVersion{},
		&types.UserPreferenceVersion{},
	}
	for _, model := range temporal {
		if err := evcs.EnsureCurrentIndex(s.db, model, false); err != nil {
			return fmt.Errorf("Failed to ensure current index: %w", err)
		}
	}
	if err := evcs.EnsureCurrentIndex(s.db, &types.ProjectVersion{}, true); err != nil {
		return fmt.Errorf("Failed to ensure current index: %w", err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
