package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server     ServerConfig
	Warehouse  WarehouseConfig
	Simulation SimulationConfig
	Database   DatabaseConfig
	Logging    LoggingConfig
	Archive    ArchiveConfig
	Narrator   NarratorConfig
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr        string
	CORSOrigins string `mapstructure:"cors_origins"`
}

// WarehouseConfig holds the grid size and the carrier's start cell.
type WarehouseConfig struct {
	Width  int
	Height int
	StartX int `mapstructure:"start_x"`
	StartY int `mapstructure:"start_y"`
}

// SimulationConfig holds delivery loop settings.
type SimulationConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	SeedPath     string        `mapstructure:"seed_path"`
}

// DatabaseConfig selects the event log backend. Driver "none" disables it.
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LoggingConfig holds event log buffering settings.
type LoggingConfig struct {
	FlushSize     int           `mapstructure:"flush_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// ArchiveConfig - 배송 기록 압축 아카이브 (Dir 비어있으면 비활성)
type ArchiveConfig struct {
	Dir string
}

// NarratorConfig holds event narration settings.
type NarratorConfig struct {
	Enabled  bool
	Cooldown time.Duration
}

// legacyEnv - 접두사 없는 기존 MySQL/서버 환경 변수 호환
var legacyEnv = map[string]string{
	"database.host":     "MYSQL_HOST",
	"database.port":     "MYSQL_PORT",
	"database.user":     "MYSQL_USER",
	"database.password": "MYSQL_PASSWORD",
	"database.name":     "MYSQL_DATABASE",
	"server.addr":       "SERVER_ADDR",
}

// Load reads .env, an optional config file and env. Env var overrides use prefix FORKLIFT_.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env 파일을 찾을 수 없습니다. (환경 변수 사용)")
	}

	v := viper.New()
	setDefaults(v)

	if cfgPath := os.Getenv("FORKLIFT_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", cfgPath, err)
		}
	}

	v.SetEnvPrefix("FORKLIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "FORKLIFT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.cors_origins", "http://localhost:5173, http://localhost:3000")

	v.SetDefault("warehouse.width", 20)
	v.SetDefault("warehouse.height", 15)
	v.SetDefault("warehouse.start_x", 1)
	v.SetDefault("warehouse.start_y", 1)

	v.SetDefault("simulation.tick_interval", 2*time.Second)
	v.SetDefault("simulation.seed_path", "")

	v.SetDefault("database.driver", "none")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0) // 0 = 드라이버 기본 포트
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.sqlite_path", "data/forklift.db")

	v.SetDefault("logging.flush_size", 50)
	v.SetDefault("logging.flush_interval", 10*time.Second)

	v.SetDefault("archive.dir", "")

	v.SetDefault("narrator.enabled", true)
	v.SetDefault("narrator.cooldown", 3*time.Second)
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	w, h := c.Warehouse.Width, c.Warehouse.Height
	if w <= 0 || h <= 0 {
		return fmt.Errorf("config: warehouse size must be positive, got %dx%d", w, h)
	}
	if c.Warehouse.StartX < 0 || c.Warehouse.StartX >= w || c.Warehouse.StartY < 0 || c.Warehouse.StartY >= h {
		return fmt.Errorf("config: start position (%d,%d) is outside the %dx%d warehouse",
			c.Warehouse.StartX, c.Warehouse.StartY, w, h)
	}
	if c.Simulation.TickInterval <= 0 {
		return fmt.Errorf("config: simulation.tick_interval must be positive, got %v", c.Simulation.TickInterval)
	}
	if c.Logging.FlushSize <= 0 || c.Logging.FlushInterval <= 0 {
		return fmt.Errorf("config: logging flush size and interval must be positive")
	}
	if c.Narrator.Cooldown < 0 {
		return fmt.Errorf("config: narrator.cooldown must not be negative")
	}

	switch c.Database.Driver {
	case "none", "sqlite":
	case "mysql", "postgres":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
			return fmt.Errorf("config: %s requires database host, user and name (MYSQL_HOST, MYSQL_USER, MYSQL_DATABASE)", c.Database.Driver)
		}
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	return nil
}
