package tracing_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mlprobe/internal/tracing"
)

func TestNewProvider(t *testing.T) {
	tests := map[string]struct {
		config     tracing.Config
		expEnabled bool
		expSpans   bool
		expErr     bool
	}{
		"Disabled tracing should use a no-op tracer": {
			config: tracing.Config{Enabled: false},
		},
		"The stdout exporter should write the spans": {
			config:     tracing.Config{Enabled: true, Exporter: tracing.ExporterStdout},
			expEnabled: true,
			expSpans:   true,
		},
		"Without exporter the spans should not be written": {
			config:     tracing.Config{Enabled: true, Exporter: tracing.ExporterNone},
			expEnabled: true,
		},
		"An unknown exporter should fail": {
			config: tracing.Config{Enabled: true, Exporter: "jaeger"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			var buf bytes.Buffer
			test.config.Writer = &buf

			p, err := tracing.NewProvider(test.config)
			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(test.expEnabled, p.Enabled())

			_, span := p.Tracer().Start(context.Background(), "orchestrator.LoadTask")
			span.End()
			require.NoError(p.Shutdown(context.Background()))

			if test.expSpans {
				assert.Contains(buf.String(), `"Name":"orchestrator.LoadTask"`)
				assert.Contains(buf.String(), `"Value":"mlprobe"`)
			} else {
				assert.Empty(buf.String())
			}
		})
	}
}
