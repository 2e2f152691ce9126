package observability

import (
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

// InstrumentDB registers the GORM OpenTelemetry plugin so every query runs
// inside a child span of the request. Metrics export is left to Prometheus.
func InstrumentDB(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}
