package jobs

import (
	"context"
	"log"

	"astrohub/internal/models"
	"astrohub/internal/services"
)

// Acquirer is the fallback chain orchestrator
type Acquirer interface {
	Acquire(ctx context.Context, req models.DatasetRequest) services.Result
}

// DatasetWarmupJob pre-populates list datasets so filter-based secondary
// strategies have a cached broader list to work from
type DatasetWarmupJob struct {
	acquirer Acquirer
	datasets []models.DatasetName
}

// NewDatasetWarmupJob creates the warmup job
func NewDatasetWarmupJob(acquirer Acquirer, datasets ...models.DatasetName) *DatasetWarmupJob {
	if len(datasets) == 0 {
		datasets = []models.DatasetName{models.DatasetAstronauts, models.DatasetMissions, models.DatasetQuiz}
	}
	return &DatasetWarmupJob{acquirer: acquirer, datasets: datasets}
}

func (j *DatasetWarmupJob) Name() string {
	return "dataset_warmup"
}

// Run acquires each dataset in turn. Acquire never fails, so a warmup that
// only reaches fallback data is logged rather than reported as an error.
func (j *DatasetWarmupJob) Run(ctx context.Context) error {
	for _, name := range j.datasets {
		if err := ctx.Err(); err != nil {
			return err
		}

		result := j.acquirer.Acquire(ctx, models.DatasetRequest{Dataset: name})
		switch result.Source {
		case services.SourceCache, services.SourceGenerated:
			log.Printf("🔥 [WARMUP] %s ready (%s, %d records)", name, result.Source, len(result.Records))
		default:
			log.Printf("⚠️  [WARMUP] %s not warmed, serving %s data", name, result.Source)
		}
	}
	return nil
}
