package store

import (
	"database/sql"
	"fmt"

	"github.com/kiara-bot/kiara/internal/models"
)

// scanPageConfig scans a page config from a single row, mapping the no-rows
// case to a nil config. An empty booking source falls back to the keywords
// source, mirroring the provisioning sheet's optional fourth column.
func scanPageConfig(row *sql.Row) (*models.PageConfig, error) {
	var cfg models.PageConfig
	err := row.Scan(&cfg.PageID, &cfg.PageToken, &cfg.KeywordsSourceID, &cfg.BookingSourceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan page config failed: %w", err)
	}
	if cfg.BookingSourceID == "" {
		cfg.BookingSourceID = cfg.KeywordsSourceID
	}
	return &cfg, nil
}

// scanKeywords scans keyword entries from query rows.
func scanKeywords(rows *sql.Rows) ([]models.KeywordEntry, error) {
	var entries []models.KeywordEntry
	for rows.Next() {
		var e models.KeywordEntry
		if err := rows.Scan(&e.Keywords, &e.Reply, &e.Extra); err != nil {
			return nil, fmt.Errorf("scan keyword row failed: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword rows failed: %w", err)
	}
	return entries, nil
}

// scanSteps scans step definitions from query rows, parsing the option spec
// for choice steps.
func scanSteps(rows *sql.Rows) ([]models.StepDefinition, error) {
	var steps []models.StepDefinition
	for rows.Next() {
		var step models.StepDefinition
		var stepType, options string
		if err := rows.Scan(&step.FieldKey, &step.Prompt, &stepType, &options); err != nil {
			return nil, fmt.Errorf("scan step row failed: %w", err)
		}
		step.Type = normalizeStepType(stepType)
		if step.Type == models.StepTypeChoice {
			step.Options = models.ParseChoiceOptions(options)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step rows failed: %w", err)
	}
	return steps, nil
}

// normalizeStepType maps legacy sheet type spellings onto the canonical step
// types ("mobile"/"contact" meant phone, "buttons" meant choice).
func normalizeStepType(raw string) models.StepType {
	switch raw {
	case "mobile", "phone", "contact":
		return models.StepTypePhone
	case "date":
		return models.StepTypeDate
	case "buttons", "choice":
		return models.StepTypeChoice
	default:
		return models.StepTypeText
	}
}
