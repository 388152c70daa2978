package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the directory passed to Load.
const FileName = "tokenmove.cfg.json"

// GridConfig holds the grid the scene is measured on. Scene files may
// override it.
type GridConfig struct {
	Type      string  `json:"type" mapstructure:"type"`
	Size      float64 `json:"size" mapstructure:"size"`
	Distance  float64 `json:"distance" mapstructure:"distance"`
	Units     string  `json:"units" mapstructure:"units"`
	Diagonals string  `json:"diagonals" mapstructure:"diagonals"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend.
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	// Database is the live database file. Empty keeps it in memory.
	Database string `json:"database" mapstructure:"database"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Type          string        `json:"type" mapstructure:"type"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	Memory        MemoryConfig  `json:"memory" mapstructure:"memory"`
	SQLite        SQLiteConfig  `json:"sqlite" mapstructure:"sqlite"`
}

// PathfindingConfig bounds pathfinding jobs.
type PathfindingConfig struct {
	Delay    time.Duration `json:"delay" mapstructure:"delay"`
	MaxNodes int           `json:"maxNodes" mapstructure:"maxNodes"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// SetDefaults registers default values for every known key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./movelogs")

	viper.SetDefault("grid.type", "square")
	viper.SetDefault("grid.size", 100)
	viper.SetDefault("grid.distance", 5)
	viper.SetDefault("grid.units", "ft")
	viper.SetDefault("grid.diagonals", "equidistant")

	viper.SetDefault("movement.defaultAction", "walk")

	viper.SetDefault("pathfinding.delay", "100ms")
	viper.SetDefault("pathfinding.maxNodes", 20000)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "2s")
	viper.SetDefault("storage.memory.outputDir", "./movements")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.database", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "tokenmove")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "tokenmove")
	viper.SetDefault("influx.bucket", "movement")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "tokenmove")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
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

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetGridConfig returns the grid section.
func GetGridConfig() GridConfig {
	return GridConfig{
		Type:      viper.GetString("grid.type"),
		Size:      viper.GetFloat64("grid.size"),
		Distance:  viper.GetFloat64("grid.distance"),
		Units:     viper.GetString("grid.units"),
		Diagonals: viper.GetString("grid.diagonals"),
	}
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			Database:     viper.GetString("storage.sqlite.database"),
		},
	}
}

// GetPathfindingConfig returns the pathfinding section.
func GetPathfindingConfig() PathfindingConfig {
	return PathfindingConfig{
		Delay:    viper.GetDuration("pathfinding.delay"),
		MaxNodes: viper.GetInt("pathfinding.maxNodes"),
	}
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
