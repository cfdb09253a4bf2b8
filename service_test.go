package arche

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/huhn511/arche/config"
)

func TestNewServiceWithContext(t *testing.T) {
	cfg := &config.ConfigurationDefault{}
	require.NoError(t, config.FillEnv(cfg))

	ctx, service := NewServiceWithContext(context.Background(), "arche", WithConfig(cfg), WithLogger())
	require.NotNil(t, service)
	require.Equal(t, "arche", service.Name())

	require.Same(t, service, Svc(ctx))
	require.Same(t, cfg, config.FromContext[*config.ConfigurationDefault](ctx))

	service.Stop(ctx)
}

func TestSvcOnBareContext(t *testing.T) {
	t.Parallel()
	require.Nil(t, Svc(context.Background()))
}

func TestDetermineHTTPPort(t *testing.T) {
	t.Parallel()

	s := &Service{}
	require.Equal(t, ":9000", s.determineHTTPPort(":9000"))
	require.Equal(t, ":8080", s.determineHTTPPort(""))

	s.configuration = &config.ConfigurationDefault{HTTPServerPort: ":7000"}
	require.Equal(t, ":7000", s.determineHTTPPort(""))
}
