package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	shutdown := Setup("store-api", "", false, zap.NewNop())
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}
