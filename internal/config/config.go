package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string        `yaml:"env" env:"ENV" env-default:"local"`
	TokenTTL   time.Duration `yaml:"token_ttl" env-default:"1h"`
	Secret     string        `yaml:"-" env:"JWT_SECRET"`
	HTTPServer HTTPServer    `yaml:"http_server"`
	DB         DB            `yaml:"db"`
	Session    Session       `yaml:"session"`
	Speech     Speech        `yaml:"speech"`
	Waypoints  Waypoints     `yaml:"waypoints"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type DB struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"5432"`
	Username string `yaml:"username" env-default:"postgres"`
	DBName   string `yaml:"dbname" env-default:"voice_recorder"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
	Password string `yaml:"-" env:"POSTGRES_PASSWORD"`
}

type Session struct {
	RecordingsPath   string        `yaml:"recordings_path" env-required:"true"`
	DurationSeconds  int           `yaml:"duration_seconds" env-default:"60"`
	LocationTimeout  time.Duration `yaml:"location_timeout" env-default:"30s"`
	CaptureSetup     time.Duration `yaml:"capture_setup" env-default:"5s"`
	AnnounceTimeout  time.Duration `yaml:"announce_timeout" env-default:"10s"`
	GraceDelay       time.Duration `yaml:"grace_delay" env-default:"2s"`
	Profile          string        `yaml:"profile" env-default:"compact"`
	GpsdAddress      string        `yaml:"gpsd_address" env-default:"localhost:2947"`
	HandsFreeDevice  string        `yaml:"hands_free_device"`
	Voice            string        `yaml:"voice" env-default:"en"`
}

type Speech struct {
	Enabled     bool          `yaml:"enabled" env-default:"true"`
	Endpoint    string        `yaml:"endpoint" env-default:"https://speech.googleapis.com/v1/speech:recognize"`
	Language    string        `yaml:"language" env-default:"en-US"`
	AltLanguage string        `yaml:"alt_language"`
	Timeout     time.Duration `yaml:"timeout" env-default:"60s"`
	APIKey      string        `yaml:"-" env:"SPEECH_API_KEY"`
}

type Waypoints struct {
	Path string `yaml:"path" env-required:"true"`
	Name string `yaml:"name" env-default:"Voice note"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		panic("CONFIG_PATH is required")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}
