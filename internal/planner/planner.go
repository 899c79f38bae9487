// Package planner implements the Job Planner (spec §4.B): mapping enabled
// sources x requested entity type to a bounded list of jobs.
package planner

import (
	"time"

	"github.com/google/uuid"

	"github.com/listingcrawl/listingcrawl/internal/models"
)

// AllEntityTypes is the planner's sentinel for "--type all".
const AllEntityTypes = "all"

// Plan emits at most limit jobs, preserving input order, filtered by
// source.Type == entityType unless entityType == AllEntityTypes
// (spec §4.B).
func Plan(srcs []*models.Source, entityType string, limit int) []*models.Job {
	jobs := make([]*models.Job, 0, limit)

	for _, src := range srcs {
		if len(jobs) >= limit {
			break
		}
		if entityType != AllEntityTypes && string(src.Type) != entityType {
			continue
		}

		jobs = append(jobs, &models.Job{
			JobID:       uuid.New().String(),
			SourceID:    src.SourceID,
			EntityType:  src.Type,
			URL:         src.BaseURL,
			MaxAttempts: models.DefaultMaxAttempts,
			Status:      models.JobStatusPending,
			CreatedAt:   time.Now(),
			Metadata: map[string]interface{}{
				"css_rules_path": src.CSSRulesPath,
				"max_qps":        src.MaxQPS,
				"concurrency":    src.Concurrency,
				"robots_ok":      src.RobotsOK,
			},
		})
	}

	return jobs
}
