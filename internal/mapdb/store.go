// Package mapdb stores map definitions in a relational database. Postgres is
// preferred; SQLite serves as the local fallback.
package mapdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/dynamicmaps/overlay/internal/mapdef"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store reads and writes definitions. It implements mapdef.Source.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

var _ mapdef.Source = (*Store)(nil)

// NewStore wraps a migrated database.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Definition loads and validates the definition of id.
func (s *Store) Definition(ctx context.Context, id string) (*mapdef.Definition, error) {
	var row MapDefinition
	err := s.db.WithContext(ctx).
		Preload("Layers").
		Preload("StaticMarkers").
		First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", mapdef.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load map %s: %w", id, err)
	}

	def, err := toDefinition(row)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mapdef.ErrInvalid, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// List returns the stored map ids in order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&MapDefinition{}).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	return ids, nil
}

// Save validates def and replaces any stored definition with the same id.
func (s *Store) Save(ctx context.Context, def *mapdef.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	row := fromDefinition(def)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("map_id = ?", def.ID).Delete(&MapLayer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("map_id = ?", def.ID).Delete(&StaticMarker{}).Error; err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(&row).Error; err != nil {
			return err
		}
		if len(row.Layers) > 0 {
			if err := tx.Create(&row.Layers).Error; err != nil {
				return err
			}
		}
		if len(row.StaticMarkers) > 0 {
			if err := tx.Create(&row.StaticMarkers).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save map %s: %w", def.ID, err)
	}

	s.logger.Debug().Str("mapID", def.ID).Int("layers", len(row.Layers)).Int("staticMarkers", len(row.StaticMarkers)).Msg("Saved map definition")
	return nil
}

// Delete removes the definition of id. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("map_id = ?", id).Delete(&MapLayer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("map_id = ?", id).Delete(&StaticMarker{}).Error; err != nil {
			return err
		}
		return tx.Delete(&MapDefinition{}, "id = ?", id).Error
	})
}

// Import copies every definition of src into the store and returns how many
// were saved. Invalid definitions are logged and skipped.
func (s *Store) Import(ctx context.Context, src mapdef.Source) (int, error) {
	ids, err := src.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		def, err := src.Definition(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("mapID", id).Msg("Skipping map definition")
			continue
		}
		if err := s.Save(ctx, def); err != nil {
			return n, err
		}
		n++
	}
	s.logger.Info().Int("imported", n).Int("found", len(ids)).Msg("Imported map definitions")
	return n, nil
}
