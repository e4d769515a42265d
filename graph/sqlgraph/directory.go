package sqlgraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/getkayan/shogun/graph"
)

// userRecord is the table row for a graph user.
type userRecord struct {
	Pub       string `gorm:"primaryKey;size:180"`
	Alias     string `gorm:"uniqueIndex;size:255;not null"`
	Epub      string `gorm:"size:180"`
	CreatedAt time.Time
}

func (userRecord) TableName() string { return "graph_users" }

// Directory is a graph.Directory over a GORM connection.
type Directory struct {
	db *gorm.DB
}

var _ graph.Directory = (*Directory)(nil)

// NewDirectory wraps db and migrates the user table.
func NewDirectory(db *gorm.DB) (*Directory, error) {
	if err := db.AutoMigrate(&userRecord{}); err != nil {
		return nil, fmt.Errorf("sqlgraph: migrate: %w", err)
	}
	return &Directory{db: db}, nil
}

// Close closes the underlying connection pool.
func (d *Directory) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Directory) Lookup(ctx context.Context, pub string) (*graph.Record, error) {
	var row userRecord
	if err := d.db.WithContext(ctx).First(&row, "pub = ?", pub).Error; err != nil {
		return nil, translate(err)
	}
	return toRecord(&row), nil
}

func (d *Directory) LookupAlias(ctx context.Context, alias string) (*graph.Record, error) {
	var row userRecord
	if err := d.db.WithContext(ctx).Where("alias = ?", alias).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	return toRecord(&row), nil
}

// Insert adds rec. Existence is checked inside a transaction so the common
// duplicate case maps to graph.ErrUserExists on every dialect; a racing
// insert still fails on the unique constraints.
func (d *Directory) Insert(ctx context.Context, rec *graph.Record) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&userRecord{}).
			Where("pub = ? OR alias = ?", rec.Pub, rec.Alias).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return graph.ErrUserExists
		}

		row := userRecord{Pub: rec.Pub, Alias: rec.Alias, Epub: rec.Epub, CreatedAt: rec.CreatedAt}
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return graph.ErrUserExists
			}
			return err
		}
		return nil
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return graph.ErrNotFound
	}
	return err
}

func toRecord(row *userRecord) *graph.Record {
	return &graph.Record{
		Pub:       row.Pub,
		Alias:     row.Alias,
		Epub:      row.Epub,
		CreatedAt: row.CreatedAt,
	}
}
