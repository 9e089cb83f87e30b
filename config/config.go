package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	App          App          `yaml:"app"`
	API          API          `yaml:"api"`
	Store        Store        `yaml:"store"`
	Media        Media        `yaml:"media"`
	Connectivity Connectivity `yaml:"connectivity"`
	Sync         Sync         `yaml:"sync"`
	Status       Status       `yaml:"status"`
}

type App struct {
	Mode string `yaml:"mode" env:"APP_MODE" env-default:"development"`
}

type API struct {
	BaseURL string        `yaml:"base_url" env:"API_BASE_URL" env-default:"http://localhost:8080/api"`
	Timeout time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"15s"`
}

// Store selects the persistence adapter backing every cache and queue.
type Store struct {
	Backend    string `yaml:"backend" env:"STORE_BACKEND" env-default:"sqlite"`
	KeyPrefix  string `yaml:"key_prefix" env:"STORE_KEY_PREFIX" env-default:""`
	SQLitePath string `yaml:"sqlite_path" env:"STORE_SQLITE_PATH" env-default:"snapshoot.db"`

	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`

	PostgresDSN string `yaml:"postgres_dsn" env:"DATABASE_URL"`
}

// Media selects where photos are uploaded: through the API or straight to S3/MinIO.
type Media struct {
	Backend   string `yaml:"backend" env:"MEDIA_BACKEND" env-default:"api"`
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT" env-default:"http://localhost:9000"`
	Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Bucket    string `yaml:"bucket" env:"S3_BUCKET" env-default:"snapshoot-media"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY_ID" env-default:"minioadmin"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_ACCESS_KEY" env-default:"minioadmin"`
	PublicURL string `yaml:"public_url" env:"S3_PUBLIC_URL" env-default:"http://localhost:9000/snapshoot-media"`
}

type Connectivity struct {
	Probe    string        `yaml:"probe" env:"CONNECTIVITY_PROBE" env-default:"http"`
	URL      string        `yaml:"url" env:"CONNECTIVITY_URL"`
	Interval time.Duration `yaml:"interval" env:"CONNECTIVITY_INTERVAL" env-default:"5s"`
	Timeout  time.Duration `yaml:"timeout" env:"CONNECTIVITY_TIMEOUT" env-default:"3s"`
}

type Sync struct {
	RatePerSecond float64 `yaml:"rate_per_second" env:"SYNC_RATE_PER_SECOND" env-default:"10"`
	Burst         int     `yaml:"burst" env:"SYNC_BURST" env-default:"5"`
}

// Status configures the local status server. When Token is set, mutating
// routes require it as a bearer token.
type Status struct {
	Addr          string  `yaml:"addr" env:"STATUS_ADDR" env-default:"127.0.0.1:8765"`
	Token         string  `yaml:"token" env:"STATUS_TOKEN"`
	SyncPerSecond float64 `yaml:"sync_per_second" env:"STATUS_SYNC_PER_SECOND" env-default:"1"`
	SyncBurst     int     `yaml:"sync_burst" env:"STATUS_SYNC_BURST" env-default:"3"`
}

// Load reads configuration from the environment, after loading a .env file
// when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile reads a YAML file; environment variables still override it.
func LoadFromFile(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ProbeURL is the URL checked by the connectivity prober; it defaults to the
// API base URL.
func (c Connectivity) ProbeURL(api API) string {
	if c.URL != "" {
		return c.URL
	}
	return api.BaseURL
}
