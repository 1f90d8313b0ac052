// Package seed loads reference data and generates demo content. It is meant
// for development databases only.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/models"
)

const batchSize = 500

// IngredientRecord is one entry of the ingredients fixture file.
type IngredientRecord struct {
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
}

// DefaultTags are the tags every fresh install starts with.
var DefaultTags = []models.Tag{
	{Name: "Breakfast", Color: "#E26C2D", Slug: "breakfast"},
	{Name: "Lunch", Color: "#49B64E", Slug: "lunch"},
	{Name: "Dinner", Color: "#8775D2", Slug: "dinner"},
}

// LoadIngredients decodes a JSON array of ingredient records, dropping
// entries with a blank name or unit.
func LoadIngredients(r io.Reader) ([]IngredientRecord, error) {
	var records []IngredientRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode ingredients: %w", err)
	}

	valid := records[:0]
	for _, rec := range records {
		rec.Name = strings.TrimSpace(rec.Name)
		rec.MeasurementUnit = strings.TrimSpace(rec.MeasurementUnit)
		if rec.Name == "" || rec.MeasurementUnit == "" {
			continue
		}
		valid = append(valid, rec)
	}
	return valid, nil
}

// ImportIngredients inserts records, skipping (name, unit) pairs that
// already exist. It returns the number of rows inserted.
func ImportIngredients(ctx context.Context, db *gorm.DB, records []IngredientRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([]models.Ingredient, len(records))
	for i, rec := range records {
		rows[i] = models.Ingredient{Name: rec.Name, MeasurementUnit: rec.MeasurementUnit}
	}

	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, batchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to import ingredients: %w", result.Error)
	}
	logger.Info("ingredients imported", "inserted", result.RowsAffected, "records", len(records))
	return result.RowsAffected, nil
}

// CreateDefaultTags inserts DefaultTags that are not present yet.
func CreateDefaultTags(ctx context.Context, db *gorm.DB) (int64, error) {
	tags := make([]models.Tag, len(DefaultTags))
	copy(tags, DefaultTags)

	result := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&tags)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to create tags: %w", result.Error)
	}
	return result.RowsAffected, nil
}
