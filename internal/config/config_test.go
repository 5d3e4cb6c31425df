package config

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"siege": { "frequencyDays": 3, "baseZombies": 25 },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(cfg), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, 3, viper.GetInt("siege.frequencyDays"))
	assert.Equal(t, 25, viper.GetInt("siege.baseZombies"))
	assert.Equal(t, 21, viper.GetInt("siege.duskHour"), "unset keys keep defaults")
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`{}`), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./siegelogs", viper.GetString("logsDir"))
	assert.Equal(t, 60, viper.GetInt("tick.rate"))
	assert.Equal(t, 7, viper.GetInt("siege.frequencyDays"))
	assert.Equal(t, 19, viper.GetInt("siege.warningHour"))
	assert.Equal(t, 21, viper.GetInt("siege.duskHour"))
	assert.Equal(t, 6, viper.GetInt("siege.dawnHour"))
	assert.Equal(t, 40, viper.GetInt("siege.baseZombies"))
	assert.InDelta(t, 1.15, viper.GetFloat64("siege.scaling"), 1e-9)
	assert.Equal(t, 400, viper.GetInt("siege.maxZombies"))
	assert.Equal(t, DefaultOutfits, viper.GetStringSlice("siege.outfits"))
	assert.Equal(t, true, viper.GetBool("specials.enabled"))
	assert.Equal(t, 2, viper.GetInt("specials.maxTanks"))
	assert.InDelta(t, 50.0, viper.GetFloat64("heat.threshold"), 1e-9)
	assert.Equal(t, 60, viper.GetInt("vote.timeoutSeconds"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "siege", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "siege-director", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("n", 12)
	assert.Equal(t, 12, GetInt("n"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("b", true)
	assert.True(t, GetBool("b"))
}

func TestGetStorageConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("storage.type", "sqlite")
	viper.Set("storage.sqlite.path", "/tmp/x.db")

	cfg := GetStorageConfig()
	assert.Equal(t, "sqlite", cfg.Type)
	assert.Equal(t, "/tmp/x.db", cfg.SQLite.Path)
}

func TestGetOTelConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults(viper.GetViper())
	viper.Set("otel.enabled", true)
	viper.Set("otel.batchTimeout", "2s")

	cfg := GetOTelConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 2*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "siege-director", cfg.ServiceName)
}

func TestGetInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults(viper.GetViper())

	cfg := GetInfluxConfig()
	assert.Equal(t, "http://localhost:8086", cfg.URL)
	assert.Equal(t, "siege", cfg.Bucket)
	assert.False(t, cfg.Enabled)
}

func TestProvider_ReturnsDefaultsAndOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	p := NewProvider(v, nil)

	assert.Equal(t, 40, p.Int("siege.baseZombies"))
	assert.InDelta(t, 55.0, p.Float("siege.spawnDistance"), 1e-9)
	assert.True(t, p.Bool("heat.enabled"))

	v.Set("siege.baseZombies", 10)
	assert.Equal(t, 10, p.Int("siege.baseZombies"), "reads are live")
}

func TestProvider_UnknownKeyWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	p := NewProvider(viper.New(), log)

	assert.Equal(t, Unknown, p.Lookup("nope.missing"))
	assert.Equal(t, 0, p.Int("nope.missing"))
	assert.Equal(t, "", p.String("nope.missing"))
	assert.Nil(t, p.Strings("nope.missing"))

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("nope.missing")))
}

func writeConfig(t *testing.T, path string, tickRate int) {
	t.Helper()
	cfg := fmt.Sprintf(`{"tick": {"rate": %d}}`, tickRate)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
}

func newFileProvider(t *testing.T) (*Provider, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	writeConfig(t, path, 30)

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	require.NoError(t, v.ReadInConfig())
	return NewProvider(v, slog.New(slog.DiscardHandler)), path
}

func TestProvider_ReloadWhileReading(t *testing.T) {
	p, path := newFileProvider(t)
	require.Equal(t, 30, p.Int("tick.rate"))
	writeConfig(t, path, 45)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 200 {
			rate := p.Int("tick.rate")
			assert.True(t, rate == 30 || rate == 45, "rate %d", rate)
		}
	}()
	go func() {
		defer wg.Done()
		for range 20 {
			assert.NoError(t, p.Reload())
		}
	}()
	wg.Wait()

	assert.Equal(t, 45, p.Int("tick.rate"))
}

func TestProvider_WatchPicksUpEdits(t *testing.T) {
	p, path := newFileProvider(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, p.Watch(ctx))

	writeConfig(t, path, 90)
	assert.Eventually(t, func() bool { return p.Int("tick.rate") == 90 }, 5*time.Second, 20*time.Millisecond)
}

func TestProvider_WatchWithoutFile(t *testing.T) {
	p := NewProvider(viper.New(), nil)
	assert.Error(t, p.Watch(context.Background()))
}
