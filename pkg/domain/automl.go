package domain

import "fmt"

// Canonical task types and metrics for the managed AutoML branch.
const (
	TaskTypeRegression     = "reg"
	TaskTypeClassification = "binary"
	MetricR2               = "r2-score"
	MetricAUC              = "auc"
)

var canonicalMetric = map[string]string{
	TaskTypeRegression:     MetricR2,
	TaskTypeClassification: MetricAUC,
}

// AutoMLConfig is the structured training configuration handed to the
// external AutoML script.
type AutoMLConfig struct {
	TaskType   string `json:"task_type" mapstructure:"task_type"`
	Target     string `json:"target" mapstructure:"target"`
	TaskMetric string `json:"task_metric" mapstructure:"task_metric"`
}

// Validate checks that every field is present, the type/metric pair is
// canonical, and the target is one of the dataset columns.
func (c AutoMLConfig) Validate(ds *Dataset) error {
	if c.TaskType == "" || c.Target == "" || c.TaskMetric == "" {
		return fmt.Errorf("%w: task_type, target and task_metric are required", ErrMalformedConfig)
	}
	metric, ok := canonicalMetric[c.TaskType]
	if !ok {
		return fmt.Errorf("%w: unsupported task_type %q", ErrMalformedConfig, c.TaskType)
	}
	if metric != c.TaskMetric {
		return fmt.Errorf("%w: task_type %q requires task_metric %q, got %q", ErrMalformedConfig, c.TaskType, metric, c.TaskMetric)
	}
	if ds == nil {
		return ErrMissingDataset
	}
	if !ds.HasColumn(c.Target) {
		return fmt.Errorf("%w: %q not in %v", ErrTargetNotFound, c.Target, ds.Columns)
	}
	return nil
}
