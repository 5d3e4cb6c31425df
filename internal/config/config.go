package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileName is the JSON file read from the config directory.
const ConfigFileName = "siege_director.cfg.json"

// DefaultOutfits is the outfit pool used when none are configured.
var DefaultOutfits = []string{
	"Generic01", "Generic02", "Generic03", "Generic04", "Generic05",
	"Police", "Fireman", "Doctor", "Nurse", "Farmer",
	"Survivalist", "ConstructionWorker", "Mechanic", "Waiter_Diner",
}

// SetDefaults registers every known key on v. Keys absent here and absent
// from the config file are "unknown" to the Provider.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("logsDir", "./siegelogs")

	v.SetDefault("tick.rate", 60)

	v.SetDefault("siege.frequencyDays", 7)
	v.SetDefault("siege.warningHour", 19)
	v.SetDefault("siege.duskHour", 21)
	v.SetDefault("siege.dawnHour", 6)
	v.SetDefault("siege.baseZombies", 40)
	v.SetDefault("siege.scaling", 1.15)
	v.SetDefault("siege.maxZombies", 400)
	v.SetDefault("siege.spawnDistance", 55.0)
	v.SetDefault("siege.healthMultiplier", 1.5)
	v.SetDefault("siege.tankHealthMultiplier", 5.0)
	v.SetDefault("siege.visibilityRadius", 60.0)
	v.SetDefault("siege.waveIntervalTicks", 30)
	v.SetDefault("siege.waveBatchSize", 4)
	v.SetDefault("siege.trickleIntervalTicks", 180)
	v.SetDefault("siege.dawnBufferSeconds", 10)
	v.SetDefault("siege.retargetIntervalTicks", 600)
	v.SetDefault("siege.attractRadius", 80.0)
	v.SetDefault("siege.outfits", DefaultOutfits)
	v.SetDefault("siege.restrictedZones", []string{})

	v.SetDefault("specials.enabled", true)
	v.SetDefault("specials.startSiege", 2)
	v.SetDefault("specials.hoursAfterDusk", 1.0)
	v.SetDefault("specials.sprinterPercent", 10)
	v.SetDefault("specials.breakerPercent", 8)
	v.SetDefault("specials.maxTanks", 2)

	v.SetDefault("establishment.searchRadius", 6)
	v.SetDefault("establishment.weightForFullScore", 40.0)

	v.SetDefault("heat.enabled", true)
	v.SetDefault("heat.threshold", 50.0)
	v.SetDefault("heat.cooldownMinutes", 120)
	v.SetDefault("heat.minZombies", 4)
	v.SetDefault("heat.maxZombies", 12)
	v.SetDefault("heat.scaleWithActivity", true)
	v.SetDefault("heat.scaleWithPlayers", true)
	v.SetDefault("heat.weightThreshold", 25.0)
	v.SetDefault("heat.searchRadius", 6)
	v.SetDefault("heat.spawnIntervalTicks", 120)
	v.SetDefault("heat.spawnDistance", 45.0)
	v.SetDefault("heat.maxPlacementFailures", 10)

	v.SetDefault("vote.enabled", true)
	v.SetDefault("vote.timeoutSeconds", 60)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.sqlite.path", "./siege_director.db")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.username", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.database", "siege")

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.host", "localhost")
	v.SetDefault("influx.port", "8086")
	v.SetDefault("influx.protocol", "http")
	v.SetDefault("influx.token", "supersecrettoken")
	v.SetDefault("influx.org", "siege-metrics")
	v.SetDefault("influx.bucket", "siege")

	v.SetDefault("graylog.enabled", false)
	v.SetDefault("graylog.address", "localhost:12201")

	v.SetDefault("notify.websocket.url", "")
	v.SetDefault("notify.websocket.secret", "")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.serviceName", "siege-director")
	v.SetDefault("otel.batchTimeout", "5s")
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values on the
// global viper instance. configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults(viper.GetViper())

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Type   string
	SQLite SQLiteConfig
}

// SQLiteConfig holds settings for the file-backed sqlite store.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:   viper.GetString("storage.type"),
		SQLite: SQLiteConfig{Path: viper.GetString("storage.sqlite.path")},
	}
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// InfluxConfig holds InfluxDB metrics settings.
type InfluxConfig struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled: viper.GetBool("influx.enabled"),
		URL: fmt.Sprintf("%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		Token:  viper.GetString("influx.token"),
		Org:    viper.GetString("influx.org"),
		Bucket: viper.GetString("influx.bucket"),
	}
}

// GraylogConfig holds GELF log shipping settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// GetGraylogConfig returns the graylog section.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// NotifyConfig holds the remote notification stream settings.
type NotifyConfig struct {
	WebsocketURL string
	Secret       string
}

// GetNotifyConfig returns the notify section.
func GetNotifyConfig() NotifyConfig {
	return NotifyConfig{
		WebsocketURL: viper.GetString("notify.websocket.url"),
		Secret:       viper.GetString("notify.websocket.secret"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
