/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/friendsincode/fillline/internal/config"
)

func TestInitTracerDisabled(t *testing.T) {
	cfg := &config.Config{TracingEnabled: false}

	p, err := InitTracer(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on disabled provider: %v", err)
	}

	// The no-op global provider still hands out usable spans.
	ctx, span := StartSpan(context.Background(), "jobs", "schedule.run")
	if ctx == nil || span == nil {
		t.Fatal("StartSpan returned nil")
	}
	span.End()
}

func TestSamplerSelection(t *testing.T) {
	cases := []struct {
		rate float64
		want sdktrace.Sampler
	}{
		{1.0, sdktrace.AlwaysSample()},
		{1.5, sdktrace.AlwaysSample()},
		{0.0, sdktrace.NeverSample()},
		{-1.0, sdktrace.NeverSample()},
		{0.25, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25))},
	}
	for _, tc := range cases {
		if got := sampler(tc.rate); got.Description() != tc.want.Description() {
			t.Errorf("sampler(%g) = %s, want %s", tc.rate, got.Description(), tc.want.Description())
		}
	}
}
