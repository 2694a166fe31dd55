package db

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hspiira/timeline-sub001/internal/config"
)

type Store struct {
	DB *gorm.DB
}

// NewStore opens the Postgres connection. With no DSN configured the store
// runs in no-db mode: the server still starts and serves health checks,
// every repository call reports the store as unavailable.
func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		slog.Warn("POSTGRES_DSN not set; starting in no-db mode")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{DB: gdb}, nil
}

// Migrate creates the schema and installs the append-only guard triggers.
// Events and workflow executions reject UPDATE and DELETE at the storage
// level, so not even a buggy repository can rewrite history.
func (s *Store) Migrate() error {
	if s.DB == nil {
		return nil
	}
	if err := s.DB.AutoMigrate(
		&TenantModel{},
		&SubjectModel{},
		&EventModel{},
		&SubjectChainModel{},
		&EventSchemaModel{},
		&TransitionRuleModel{},
		&WorkflowModel{},
		&WorkflowExecutionModel{},
		&TaskModel{},
		&SubjectSnapshotModel{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	const guardFn = `
CREATE OR REPLACE FUNCTION reject_row_mutation() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION '% rows are append-only', TG_TABLE_NAME
        USING ERRCODE = 'integrity_constraint_violation';
END;
$$ LANGUAGE plpgsql;`
	if err := s.DB.Exec(guardFn).Error; err != nil {
		return fmt.Errorf("create guard function: %w", err)
	}
	for _, table := range []string{"events", "workflow_executions"} {
		stmt := fmt.Sprintf(`
DROP TRIGGER IF EXISTS %[1]s_immutable ON %[1]s;
CREATE TRIGGER %[1]s_immutable
    BEFORE UPDATE OR DELETE ON %[1]s
    FOR EACH ROW EXECUTE FUNCTION reject_row_mutation();`, table)
		if err := s.DB.Exec(stmt).Error; err != nil {
			return fmt.Errorf("install guard trigger on %s: %w", table, err)
		}
	}
	return nil
}
