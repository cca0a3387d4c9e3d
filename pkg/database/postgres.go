package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type PostgresConfig struct {
	DSN             string
	DatabaseName    string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migration       *MigrationConfig
}

// Postgres opens the connection pool and runs migrations as a startup dependency.
type Postgres struct {
	config *PostgresConfig
	logger ectologger.Logger
	db     *sqlx.DB
}

func NewPostgres(config *PostgresConfig, logger ectologger.Logger) *Postgres {
	return &Postgres{config: config, logger: logger}
}

func (p *Postgres) GetName() string {
	return "postgres"
}

func (p *Postgres) DependsOn() []string {
	return []string{"tracing"}
}

func (p *Postgres) Start(ctx context.Context) error {
	if p.db != nil {
		return nil
	}

	db, err := sqlx.Open("postgres", p.config.DSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(p.config.MaxOpenConns)
	db.SetMaxIdleConns(p.config.MaxIdleConns)
	db.SetConnMaxLifetime(p.config.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	if p.config.Migration != nil {
		driver, err := postgres.WithInstance(db.DB, &postgres.Config{DatabaseName: p.config.DatabaseName})
		if err != nil {
			_ = db.Close()
			return fmt.Errorf("create migration driver: %w", err)
		}
		if err := NewMigrationService(p.logger, p.config.Migration).Migrate(p.config.DatabaseName, driver); err != nil {
			_ = db.Close()
			return err
		}
	}

	p.logger.WithContext(ctx).Info("Connected to postgres")
	p.db = db
	return nil
}

func (p *Postgres) Stop(ctx context.Context) error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// DB returns the pool wrapped as a DB. Only valid after Start.
func (p *Postgres) DB() DB {
	return NewDatabaseInstance(p.db, p.logger)
}

func (p *Postgres) Ping(ctx context.Context) error {
	if p.db == nil {
		return fmt.Errorf("postgres not started")
	}
	return p.db.PingContext(ctx)
}
