// Package metrics defines the service's OpenTelemetry instruments. They
// report to the global meter provider, which is a no-op until one is set.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ayusman/mingshan/internal/gesture"
)

const instrumentationName = "github.com/ayusman/mingshan/internal/metrics"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Metrics holds the counters. A nil *Metrics records nothing.
type Metrics struct {
	m metric.Meter

	frames     metric.Int64Counter
	skipped    metric.Int64Counter
	readErrors metric.Int64Counter
	intents    metric.Int64Counter
	rendered   metric.Int64Counter
	dispersion metric.Float64ObservableGauge
}

// New creates the instruments on the global meter.
func New() (*Metrics, error) {
	m := meter()
	mt := &Metrics{m: m}

	var err error
	mt.frames, err = m.Int64Counter(
		"mingshan.capture.frames",
		metric.WithDescription("Camera frames classified"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}

	mt.skipped, err = m.Int64Counter(
		"mingshan.capture.skipped",
		metric.WithDescription("Camera frames skipped because their timestamp did not advance"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	mt.readErrors, err = m.Int64Counter(
		"mingshan.capture.errors",
		metric.WithDescription("Camera reads or detections that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating errors counter: %w", err)
	}

	mt.intents, err = m.Int64Counter(
		"mingshan.gesture.intents",
		metric.WithDescription("Gesture intents emitted, by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating intents counter: %w", err)
	}

	mt.rendered, err = m.Int64Counter(
		"mingshan.render.frames",
		metric.WithDescription("Render frames stepped"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating render counter: %w", err)
	}

	mt.dispersion, err = m.Float64ObservableGauge(
		"mingshan.render.dispersion",
		metric.WithDescription("Current blended dispersion"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dispersion gauge: %w", err)
	}

	return mt, nil
}

// FrameProcessed counts a classified camera frame.
func (mt *Metrics) FrameProcessed(ctx context.Context) {
	if mt != nil {
		mt.frames.Add(ctx, 1)
	}
}

// FrameSkipped counts a frame dropped for a stale timestamp.
func (mt *Metrics) FrameSkipped(ctx context.Context) {
	if mt != nil {
		mt.skipped.Add(ctx, 1)
	}
}

// CaptureError counts a failed read or detection.
func (mt *Metrics) CaptureError(ctx context.Context, stage string) {
	if mt != nil {
		mt.readErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	}
}

// Intent counts an emitted intent of the given kind.
func (mt *Metrics) Intent(ctx context.Context, kind gesture.Kind) {
	if mt != nil {
		mt.intents.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
	}
}

// RenderFrame counts one blender step.
func (mt *Metrics) RenderFrame(ctx context.Context) {
	if mt != nil {
		mt.rendered.Add(ctx, 1)
	}
}

// ObserveDispersion reports fn's value on every collection.
func (mt *Metrics) ObserveDispersion(fn func() float64) error {
	if mt == nil {
		return nil
	}
	_, err := mt.m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveFloat64(mt.dispersion, fn())
			return nil
		},
		mt.dispersion,
	)
	if err != nil {
		return fmt.Errorf("registering dispersion callback: %w", err)
	}
	return nil
}
