package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quailyquaily/deskbot/db/models"
	"github.com/quailyquaily/deskbot/internal/dispatch"
)

// Store is the append-only interaction recorder. Callers treat every write as
// best effort; only opening the connection at startup is allowed to fail hard.
type Store struct {
	gdb *gorm.DB
}

func Open(cfg Config) (*Store, error) {
	if cfg.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.Driver)
	}
	dsn, err := ResolveSQLiteDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite dsn: %w", err)
	}
	gdb, err := gorm.Open(sqlite.Open(sqlitePragmaDSN(dsn, cfg.SQLite)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	}

	if cfg.AutoMigrate {
		if err := AutoMigrate(gdb); err != nil {
			return nil, fmt.Errorf("migrate db: %w", err)
		}
	}
	return &Store{gdb: gdb}, nil
}

func AutoMigrate(gdb *gorm.DB) error {
	if gdb == nil {
		return fmt.Errorf("nil gorm db")
	}
	return gdb.AutoMigrate(
		&models.Interaction{},
		&models.TicketEvent{},
	)
}

// RecordInteraction implements dispatch.Recorder.
func (s *Store) RecordInteraction(ctx context.Context, rec dispatch.InteractionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	row := models.Interaction{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		UserID:         rec.UserID,
		RequestText:    rec.RequestText,
		ResponseText:   rec.ResponseText,
		CreatedAt:      rec.CreatedAt,
	}
	return s.gdb.WithContext(ctx).Create(&row).Error
}

// RecordTicketEvent implements ticket.Recorder.
func (s *Store) RecordTicketEvent(ctx context.Context, event, channelID, actorID string) error {
	row := models.TicketEvent{
		ID:        uuid.NewString(),
		Event:     event,
		ChannelID: channelID,
		ActorID:   actorID,
		CreatedAt: time.Now().UTC(),
	}
	return s.gdb.WithContext(ctx).Create(&row).Error
}

// Close releases the underlying connection. Called on shutdown before exit.
func (s *Store) Close() error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
