package router

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/rlmatch/recorder/internal/router"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
