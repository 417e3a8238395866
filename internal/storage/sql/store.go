package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pittmc/backend/internal/config"
	"pittmc/backend/internal/domain"
)

// AuditRow is the archived form of a whitelist submission.
type AuditRow struct {
	ID         uint      `gorm:"primaryKey"`
	Email      string    `gorm:"size:254;index;not null"`
	Username   string    `gorm:"size:32;not null"`
	Edition    string    `gorm:"size:16;not null"`
	Device     string    `gorm:"size:16"`
	RecordedAt time.Time `gorm:"index;not null"`
}

func (AuditRow) TableName() string {
	return "whitelist_audit"
}

// Archive mirrors audit records into MySQL 5.7+ or PostgreSQL. The KV store
// keeps records for ninety days; the archive keeps them indefinitely.
type Archive struct {
	db         *sql.DB
	gormDB     *gorm.DB
	driverName string
}

// NewArchive opens, pings and migrates the configured database.
func NewArchive(cfg config.DatabaseConfig) (*Archive, error) {
	driverName := cfg.Type
	if driverName != "mysql" && driverName != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var dialector gorm.Dialector
	if driverName == "mysql" {
		dialector = mysql.New(mysql.Config{Conn: db})
	} else {
		dialector = postgres.New(postgres.Config{Conn: db})
	}

	gormDB, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	archive := &Archive{db: db, gormDB: gormDB, driverName: driverName}
	if err := archive.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return archive, nil
}

// NewArchiveWithDB wraps an already opened gorm connection and migrates it.
func NewArchiveWithDB(gormDB *gorm.DB) (*Archive, error) {
	db, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	archive := &Archive{db: db, gormDB: gormDB, driverName: gormDB.Dialector.Name()}
	if err := archive.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return archive, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (a *Archive) migrate() error {
	return a.gormDB.AutoMigrate(&AuditRow{})
}

// Record inserts one audit record.
func (a *Archive) Record(ctx context.Context, rec domain.AuditRecord) error {
	row := AuditRow{
		Email:      rec.Email,
		Username:   rec.Username,
		Edition:    string(rec.Edition),
		Device:     string(rec.Device),
		RecordedAt: rec.Timestamp.UTC(),
	}
	if err := a.gormDB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("archive audit record: %w", err)
	}
	return nil
}

// ListByEmail returns the newest records for email, at most limit.
func (a *Archive) ListByEmail(ctx context.Context, email string, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var rows []AuditRow
	err := a.gormDB.WithContext(ctx).
		Where("email = ?", email).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}

	out := make([]domain.AuditRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AuditRecord{
			Email:     r.Email,
			Username:  r.Username,
			Edition:   domain.Edition(r.Edition),
			Device:    domain.Device(r.Device),
			Timestamp: r.RecordedAt,
		})
	}
	return out, nil
}

// Health pings the database.
func (a *Archive) Health(ctx context.Context) error {
	if a == nil || a.db == nil {
		return errors.New("database connection is nil")
	}
	return a.db.PingContext(ctx)
}

// Close releases the connection pool.
func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
