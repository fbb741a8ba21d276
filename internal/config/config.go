package config

import (
	"fmt"
	"time"

	"github.com/dynamicmaps/overlay/internal/model/core"
	"github.com/spf13/viper"
)

// ConfigFileName is the name of the JSON config file looked up in the config dir.
const ConfigFileName = "mapoverlay.cfg.json"

// DefinitionsConfig selects where map definitions are read from
type DefinitionsConfig struct {
	Source string `json:"source" mapstructure:"source"` // "file" or "database"
	Dir    string `json:"dir" mapstructure:"dir"`
}

// DatabaseConfig holds the definition database connection settings
type DatabaseConfig struct {
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Username   string `json:"username" mapstructure:"username"`
	Password   string `json:"password" mapstructure:"password"`
	Database   string `json:"database" mapstructure:"database"`
	SqlitePath string `json:"sqlitePath" mapstructure:"sqlitePath"`
}

// HotZonesConfig configures the enemy hot zone provider
type HotZonesConfig struct {
	Enabled          bool          `json:"enabled" mapstructure:"enabled"`
	Interval         time.Duration `json:"interval" mapstructure:"interval"`
	ShowBosses       bool          `json:"showBosses" mapstructure:"showBosses"`
	ShowEnemyPlayers bool          `json:"showEnemyPlayers" mapstructure:"showEnemyPlayers"`
	ShowScavs        bool          `json:"showScavs" mapstructure:"showScavs"`
	BossColor        core.Color    `json:"bossColor" mapstructure:"bossColor"`
	EnemyColor       core.Color    `json:"enemyColor" mapstructure:"enemyColor"`
	ScavColor        core.Color    `json:"scavColor" mapstructure:"scavColor"`
	ImagePath        string        `json:"imagePath" mapstructure:"imagePath"`
}

// PlayerConfig configures the local player marker
type PlayerConfig struct {
	ShowMarker      bool       `json:"showMarker" mapstructure:"showMarker"`
	AutoSelectLevel bool       `json:"autoSelectLevel" mapstructure:"autoSelectLevel"`
	Color           core.Color `json:"color" mapstructure:"color"`
	ImagePath       string     `json:"imagePath" mapstructure:"imagePath"`
}

// MarkerConfig holds settings shared by all markers
type MarkerConfig struct {
	Size                float64       `json:"size" mapstructure:"size"`
	LayerLookupInterval time.Duration `json:"layerLookupInterval" mapstructure:"layerLookupInterval"`
}

// DisplayConfig holds alpha values per layer status
type DisplayConfig struct {
	UnderneathLayerAlpha  float64 `json:"underneathLayerAlpha" mapstructure:"underneathLayerAlpha"`
	UnderneathMarkerAlpha float64 `json:"underneathMarkerAlpha" mapstructure:"underneathMarkerAlpha"`
}

// InfluxConfig holds reconciliation metrics sink settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// GraylogConfig holds GELF log sink settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// Snapshot is the configuration a single map view and its providers run with.
// It is read once and passed down so a running session never observes a
// half-applied config change.
type Snapshot struct {
	HotZones HotZonesConfig
	Player   PlayerConfig
	Marker   MarkerConfig
	Display  DisplayConfig
}

const defaultHotZonesInterval = 30 * time.Second

var (
	defaultBossColor  = core.Lerp(core.Red, core.Yellow, 0.7)
	defaultScavColor  = core.Lerp(core.Red, core.Yellow, 0.5)
	defaultEnemyColor = core.Red
)

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./maplogs")

	viper.SetDefault("definitions.source", "file")
	viper.SetDefault("definitions.dir", "./maps")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "mapoverlay")
	viper.SetDefault("db.sqlitePath", "")

	viper.SetDefault("hotZones.enabled", true)
	viper.SetDefault("hotZones.interval", "30s")
	viper.SetDefault("hotZones.showBosses", true)
	viper.SetDefault("hotZones.showEnemyPlayers", true)
	viper.SetDefault("hotZones.showScavs", true)
	viper.SetDefault("hotZones.imagePath", "Markers/arrow.png")

	viper.SetDefault("player.showMarker", true)
	viper.SetDefault("player.autoSelectLevel", true)
	viper.SetDefault("player.imagePath", "Markers/arrow.png")

	viper.SetDefault("marker.size", 30.0)
	viper.SetDefault("marker.layerLookupInterval", "500ms")

	viper.SetDefault("display.underneathLayerAlpha", 0.5)
	viper.SetDefault("display.underneathMarkerAlpha", 0.25)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "map-overlay")
	viper.SetDefault("influx.bucket", "reconciliation")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "map-overlay")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDefinitionsConfig returns the definition source settings.
func GetDefinitionsConfig() DefinitionsConfig {
	return DefinitionsConfig{
		Source: viper.GetString("definitions.source"),
		Dir:    viper.GetString("definitions.dir"),
	}
}

// GetDatabaseConfig returns the definition database settings.
func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:       viper.GetString("db.host"),
		Port:       viper.GetString("db.port"),
		Username:   viper.GetString("db.username"),
		Password:   viper.GetString("db.password"),
		Database:   viper.GetString("db.database"),
		SqlitePath: viper.GetString("db.sqlitePath"),
	}
}

// GetHotZonesConfig returns the hot zone provider settings. A non-positive
// interval falls back to the default.
func GetHotZonesConfig() HotZonesConfig {
	interval := viper.GetDuration("hotZones.interval")
	if interval <= 0 {
		interval = defaultHotZonesInterval
	}
	return HotZonesConfig{
		Enabled:          viper.GetBool("hotZones.enabled"),
		Interval:         interval,
		ShowBosses:       viper.GetBool("hotZones.showBosses"),
		ShowEnemyPlayers: viper.GetBool("hotZones.showEnemyPlayers"),
		ShowScavs:        viper.GetBool("hotZones.showScavs"),
		BossColor:        getColor("hotZones.bossColor", defaultBossColor),
		EnemyColor:       getColor("hotZones.enemyColor", defaultEnemyColor),
		ScavColor:        getColor("hotZones.scavColor", defaultScavColor),
		ImagePath:        viper.GetString("hotZones.imagePath"),
	}
}

// GetPlayerConfig returns the local player marker settings.
func GetPlayerConfig() PlayerConfig {
	return PlayerConfig{
		ShowMarker:      viper.GetBool("player.showMarker"),
		AutoSelectLevel: viper.GetBool("player.autoSelectLevel"),
		Color:           getColor("player.color", core.Green),
		ImagePath:       viper.GetString("player.imagePath"),
	}
}

// GetMarkerConfig returns settings shared by all markers.
func GetMarkerConfig() MarkerConfig {
	return MarkerConfig{
		Size:                viper.GetFloat64("marker.size"),
		LayerLookupInterval: viper.GetDuration("marker.layerLookupInterval"),
	}
}

// GetDisplayConfig returns the layer status alpha values.
func GetDisplayConfig() DisplayConfig {
	return DisplayConfig{
		UnderneathLayerAlpha:  viper.GetFloat64("display.underneathLayerAlpha"),
		UnderneathMarkerAlpha: viper.GetFloat64("display.underneathMarkerAlpha"),
	}
}

// GetInfluxConfig returns the metrics sink settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetSnapshot bundles the settings a map view runs with.
func GetSnapshot() Snapshot {
	return Snapshot{
		HotZones: GetHotZonesConfig(),
		Player:   GetPlayerConfig(),
		Marker:   GetMarkerConfig(),
		Display:  GetDisplayConfig(),
	}
}

// DefaultSnapshot returns the snapshot produced by the default values, without
// touching the global viper instance.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		HotZones: HotZonesConfig{
			Enabled:          true,
			Interval:         defaultHotZonesInterval,
			ShowBosses:       true,
			ShowEnemyPlayers: true,
			ShowScavs:        true,
			BossColor:        defaultBossColor,
			EnemyColor:       defaultEnemyColor,
			ScavColor:        defaultScavColor,
			ImagePath:        "Markers/arrow.png",
		},
		Player: PlayerConfig{
			ShowMarker:      true,
			AutoSelectLevel: true,
			Color:           core.Green,
			ImagePath:       "Markers/arrow.png",
		},
		Marker: MarkerConfig{
			Size:                30,
			LayerLookupInterval: 500 * time.Millisecond,
		},
		Display: DisplayConfig{
			UnderneathLayerAlpha:  0.5,
			UnderneathMarkerAlpha: 0.25,
		},
	}
}

// getColor reads an {r,g,b,a} object, falling back when the key is unset.
func getColor(key string, fallback core.Color) core.Color {
	if !viper.IsSet(key) {
		return fallback
	}
	var c core.Color
	if err := viper.UnmarshalKey(key, &c); err != nil {
		return fallback
	}
	return c
}
