// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewTracerProvider(t *testing.T) {
	ctx := context.Background()
	tracing := GetDefaultConfig().Tracing
	provider, err := tracing.NewTracerProvider(ctx, "rating")
	require.NoError(t, err)
	assert.IsType(t, noop.TracerProvider{}, provider)

	tracing.EnableTracing = true
	for _, exporter := range []string{"zipkin", "otlp", "otlphttp"} {
		tracing.Exporter = exporter
		tracing.CollectorEndpoint = "localhost:4318"
		if exporter == "zipkin" {
			tracing.CollectorEndpoint = "http://localhost:9411/api/v2/spans"
		}
		provider, err = tracing.NewTracerProvider(ctx, "rating")
		require.NoError(t, err)
		sdkProvider, ok := provider.(*tracesdk.TracerProvider)
		require.True(t, ok)
		assert.NoError(t, sdkProvider.Shutdown(ctx))
	}

	tracing.Exporter = "jaeger"
	_, err = tracing.NewTracerProvider(ctx, "rating")
	assert.True(t, errors.Is(err, errors.NotSupported))
}

func TestTracingValidate(t *testing.T) {
	_, err := LoadConfigFromString("[tracing]\nsampler = \"sometimes\"\n")
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = LoadConfigFromString("[tracing]\nsampler = \"ratio\"\nratio = 0.5\n")
	assert.NoError(t, err)
}
