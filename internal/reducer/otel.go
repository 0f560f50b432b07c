package reducer

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meter is swapped in tests.
var meter = func() metric.Meter {
	return otel.Meter("github.com/rlmatch/recorder/internal/reducer")
}

var (
	outcomeSaved     = attribute.String("outcome", "saved")
	outcomeDiscarded = attribute.String("outcome", "discarded")
	outcomeFailed    = attribute.String("outcome", "failed")
)
