package control

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/style"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDefaultSettingsConfig(t *testing.T) {
	cfg, err := DefaultSettings().Config()
	require.NoError(t, err)
	assert.Equal(t, renderer.ExecutionModelRasterStreamOut, cfg.Model)
	assert.Equal(t, style.VisualStyleTexturedQuad, cfg.Style)
	assert.EqualValues(t, 5000, cfg.ParticleCount)
	assert.InDelta(t, 0.001, cfg.ParticleSpeed, 1e-9)
	assert.EqualValues(t, 10, cfg.ParticleSize)
	assert.Equal(t, common.RGBA{A: 1}, cfg.Background)
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings([]byte(`
renderer: webgpu
particleType: quad-particles
backgroundColor: "#fff"
particleCount: "20000"
particleSpeed: 0.05
`))
	require.NoError(t, err)
	assert.Equal(t, 20000, s.ParticleCount)
	assert.EqualValues(t, 10, s.ParticleSize)

	cfg, err := s.Config()
	require.NoError(t, err)
	assert.Equal(t, renderer.ExecutionModelComputeDispatch, cfg.Model)
	assert.Equal(t, style.VisualStyleQuad, cfg.Style)
	assert.Equal(t, common.RGBA{R: 1, G: 1, B: 1, A: 1}, cfg.Background)
}

func TestParseSettingsRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":     "particleColour: red",
		"bad renderer":    "renderer: vulkan",
		"bad style":       "particleType: sprite",
		"bad color":       "backgroundColor: black",
		"count too large": "particleCount: 20000001",
		"negative count":  "particleCount: -1",
		"speed too large": "particleSpeed: 0.2",
		"size too large":  "particleSize: 101",
		"not a number":    "particleSize: big",
		"malformed yaml":  "renderer: [gl",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSettings([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidSettings)
		})
	}
}

func TestSettingsRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swarm.yaml")
	want := DefaultSettings()
	want.ParticleType = "point"
	data, err := want.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMailboxKeepsNewest(t *testing.T) {
	m := NewMailbox()
	_, ok := m.Drain()
	assert.False(t, ok)

	for _, count := range []int{1, 2, 3} {
		s := DefaultSettings()
		s.ParticleCount = count
		m.Post(s)
	}
	assert.Equal(t, 3, m.Len())

	select {
	case <-m.Notify():
	default:
		t.Fatal("no notification after Post")
	}

	s, ok := m.Drain()
	require.True(t, ok)
	assert.Equal(t, 3, s.ParticleCount)
	assert.Zero(t, m.Len())
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("particleCount: 10\n"), 0o644))

	m := NewMailbox()
	w, err := NewWatcher(path, m, WithWatcherLogger(zaptest.NewLogger(t)), WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	var mu sync.Mutex
	var applied []Settings
	c := NewController(m,
		WithLogger(zaptest.NewLogger(t)),
		WithWatcher(w),
		WithApply(func(s Settings) error {
			mu.Lock()
			defer mu.Unlock()
			applied = append(applied, s)
			return nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// the directory watch is registered asynchronously
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("particleCount: bad\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("particleCount: 42\nparticleType: point\n"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) > 0 && applied[len(applied)-1].ParticleCount == 42
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	for _, s := range applied {
		assert.NoError(t, s.Validate())
	}
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not stop")
	}
}

func TestControllerKeepsRunningAfterRejectedApply(t *testing.T) {
	m := NewMailbox()
	calls := make(chan Settings, 2)
	c := NewController(m, WithApply(func(s Settings) error {
		calls <- s
		return errors.New("device unavailable")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	m.Post(DefaultSettings())
	<-calls
	m.Post(DefaultSettings())
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("controller stopped after a rejected apply")
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing", "swarm.yaml"), NewMailbox())
	require.NoError(t, err)
	assert.Error(t, w.Run(context.Background()))
}

func TestApplyKey(t *testing.T) {
	base := DefaultSettings()

	s, ok := ApplyKey(base, common.Key1)
	require.True(t, ok)
	assert.Equal(t, "point", s.ParticleType)

	s, ok = ApplyKey(base, common.KeyW)
	require.True(t, ok)
	assert.Equal(t, "wgpu", s.Renderer)

	s, ok = ApplyKey(base, common.KeyUp)
	require.True(t, ok)
	assert.Equal(t, 10000, s.ParticleCount)

	s, ok = ApplyKey(base, common.KeyLeft)
	require.True(t, ok)
	assert.InDelta(t, 0.0005, s.ParticleSpeed, 1e-12)

	base.ParticleCount = 0
	s, ok = ApplyKey(base, common.KeyUp)
	require.True(t, ok)
	assert.Equal(t, 1, s.ParticleCount)

	_, ok = ApplyKey(base, 'Z')
	assert.False(t, ok)
}
