package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/spatial/internal/core/observability/metrics"
	"github.com/zeusync/spatial/internal/core/region"
	"github.com/zeusync/spatial/internal/core/system"
	"github.com/zeusync/spatial/internal/core/systems/physics"
	"github.com/zeusync/spatial/internal/core/systems/physics/headless"
)

func newTestWorld(t *testing.T) *system.World {
	t.Helper()
	engine := headless.New()
	w, err := system.NewWorld(system.Options{}, engine, region.NewManager(engine, 10), nil, nil)
	require.NoError(t, err)
	return w
}

func testConfig() Config {
	return Config{
		LogicInterval:   2 * time.Millisecond,
		RenderInterval:  5 * time.Millisecond,
		HTTPEnabled:     true,
		HTTPAddress:     "127.0.0.1:0",
		ShutdownTimeout: time.Second,
	}
}

func TestServer_Lifecycle(t *testing.T) {
	srv := NewServer(testConfig(), newTestWorld(t), nil, nil)
	ctx := context.Background()

	require.ErrorIs(t, srv.Stop(ctx), ErrServerNotRunning)
	require.NoError(t, srv.Start(ctx))
	require.True(t, srv.IsRunning())
	require.ErrorIs(t, srv.Start(ctx), ErrServerAlreadyRunning)
	require.NotNil(t, srv.Addr())

	require.NoError(t, srv.Stop(ctx))
	require.False(t, srv.IsRunning())

	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())
	require.ErrorIs(t, srv.Start(ctx), ErrServerClosed)
}

func TestServer_RestartResumesTicking(t *testing.T) {
	world := newTestWorld(t)
	cfg := testConfig()
	cfg.HTTPEnabled = false
	srv := NewServer(cfg, world, nil, nil)
	ctx := context.Background()

	require.NoError(t, srv.Start(ctx))
	require.Eventually(t, func() bool { return world.Stats().Ticks > 0 }, 2*time.Second, 2*time.Millisecond)
	require.NoError(t, srv.Stop(ctx))

	stopped := world.Stats().Ticks
	require.NoError(t, srv.Start(ctx))
	defer srv.Close()
	require.Eventually(t, func() bool { return world.Stats().Ticks > stopped+2 }, 2*time.Second, 2*time.Millisecond)
}

func TestServer_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.LogicInterval = 0
	srv := NewServer(cfg, newTestWorld(t), nil, nil)
	require.ErrorIs(t, srv.Start(context.Background()), ErrInvalidConfig)
	require.False(t, srv.IsRunning())
}

func TestServer_LoopsDriveTheWorld(t *testing.T) {
	world := newTestWorld(t)
	e, err := world.Spawn("mover", physics.IdentityTransform(physics.World{}))
	require.NoError(t, err)
	world.AddLogic(func(_ context.Context, ent *system.Entity, _ time.Duration) error {
		p := ent.Scene.LiveTransform().Position()
		p.Vec[0] += 0.1
		return ent.Scene.SetPosition(p)
	})

	cfg := testConfig()
	cfg.HTTPEnabled = false
	srv := NewServer(cfg, world, nil, nil)
	require.NoError(t, srv.Start(context.Background()))
	require.Nil(t, srv.Addr())

	require.Eventually(t, func() bool { return world.Stats().Ticks >= 20 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, srv.Stop(context.Background()))

	require.Greater(t, e.Scene.Position().X(), 0.0)
	require.Greater(t, e.Scene.RenderTransform().Position().X(), 0.0)
}

func TestServer_HTTPEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	require.NoError(t, err)

	world := newTestWorld(t)
	world.Runner().SetObserver(collector)
	_, err = world.Spawn("a", physics.IdentityTransform(physics.World{}))
	require.NoError(t, err)

	srv := NewServer(testConfig(), world, collector, nil)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Close()

	require.Eventually(t, func() bool { return world.Stats().Ticks > 0 }, 2*time.Second, 5*time.Millisecond)

	base := "http://" + srv.Addr().String()
	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var h health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 1, h.Entities)
	assert.Equal(t, 1, h.Regions)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "spatial_system_duration_seconds")
}

func TestServer_HealthWhenStopped(t *testing.T) {
	srv := NewServer(testConfig(), newTestWorld(t), nil, nil)
	handler := srv.routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code, "metrics are not served without a collector")
}
