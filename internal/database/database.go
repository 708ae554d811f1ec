package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lireddit/backend/internal/config"
	"github.com/lireddit/backend/internal/models"
)

// Database wraps the gorm handle. It is constructed once at boot and passed
// explicitly to every component that needs storage; there is no package-level
// instance.
type Database struct {
	DB *gorm.DB

	name string
	log  *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) (*Database, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
	)

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing gorm: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	d := &Database{DB: db, name: cfg.DBName, log: log}
	if err := d.migrate(); err != nil {
		return nil, err
	}

	log.Info("database connected", zap.String("name", cfg.DBName))
	return d, nil
}

func (d *Database) migrate() error {
	if err := d.DB.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Vote{},
	); err != nil {
		return fmt.Errorf("error migrating database: %w", err)
	}

	// AutoMigrate does not attach referential actions; deleting a user or a
	// post must take its votes with it.
	stmts := []string{
		`ALTER TABLE votes DROP CONSTRAINT IF EXISTS fk_votes_post`,
		`ALTER TABLE votes ADD CONSTRAINT fk_votes_post
			FOREIGN KEY (post_id) REFERENCES posts (id) ON DELETE CASCADE`,
		`ALTER TABLE votes DROP CONSTRAINT IF EXISTS fk_votes_user`,
		`ALTER TABLE votes ADD CONSTRAINT fk_votes_user
			FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE`,
	}
	for _, stmt := range stmts {
		if err := d.DB.Exec(stmt).Error; err != nil {
			return fmt.Errorf("error applying vote constraints: %w", err)
		}
	}
	return nil
}

// Health checks the health of the database connection by pinging it.
func (d *Database) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats := make(map[string]string)

	sqlDB, err := d.DB.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db error: %v", err)
		return stats
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	dbStats := sqlDB.Stats()
	stats["status"] = "up"
	stats["open_connections"] = fmt.Sprintf("%d", dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprintf("%d", dbStats.InUse)
	stats["idle"] = fmt.Sprintf("%d", dbStats.Idle)
	return stats
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	d.log.Info("database disconnected", zap.String("name", d.name))
	return sqlDB.Close()
}
