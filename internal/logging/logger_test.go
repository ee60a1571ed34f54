package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"shadowbox/internal/config"
)

func TestNew_ProductionModeIsSilent(t *testing.T) {
	l, err := New(config.LoggingConfig{Level: "debug"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestNew_Level(t *testing.T) {
	l, err := New(config.LoggingConfig{DebugMode: true, Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = New(config.LoggingConfig{DebugMode: true, Level: "chatty"})
	assert.Error(t, err)
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shadowbox.log")
	l, err := New(config.LoggingConfig{DebugMode: true, Level: "info", Format: "json", File: path})
	require.NoError(t, err)

	l.Named("loader").Info("Defined symbol", zap.String("name", "android.view.View"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.True(t, strings.Contains(line, `"logger":"loader"`), line)
	assert.True(t, strings.Contains(line, `"name":"android.view.View"`), line)
}

func TestFor_Categories(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)
	c := config.LoggingConfig{DebugMode: true, Categories: map[string]bool{"policy": false}}

	For(base, c, CategoryLoader).Info("kept")
	For(base, c, CategoryPolicy).Info("dropped")
	For(nil, c, CategoryLoader).Info("no base")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "loader", entries[0].LoggerName)
	assert.Equal(t, "kept", entries[0].Message)
}

func TestGet_CachesPerCategory(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Install(zap.New(core), config.LoggingConfig{DebugMode: true})
	t.Cleanup(func() { Install(zap.NewNop(), config.LoggingConfig{}) })

	var wg sync.WaitGroup
	got := make([]*zap.Logger, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = Get(CategorySandbox)
		}(i)
	}
	wg.Wait()
	for _, l := range got {
		assert.Same(t, got[0], l)
	}

	Get(CategorySandbox).Debug("hello")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "sandbox", logs.All()[0].LoggerName)
	assert.NoError(t, Sync())
}

func TestInitialize(t *testing.T) {
	t.Cleanup(func() { Install(zap.NewNop(), config.LoggingConfig{}) })

	require.NoError(t, Initialize(config.LoggingConfig{}))
	assert.False(t, Get(CategoryBoot).Core().Enabled(zapcore.ErrorLevel))

	assert.Error(t, Initialize(config.LoggingConfig{DebugMode: true, Level: "chatty"}))
	assert.Len(t, Categories, 6)
}
