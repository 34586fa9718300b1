package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type SessionAPI struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type Media struct {
	RetryDelay   time.Duration `mapstructure:"retry_delay" validate:"gt=0"`
	Retries      int           `mapstructure:"retries" validate:"gte=0,lte=10"`
	CameraID     string        `mapstructure:"camera_id"`
	MicrophoneID string        `mapstructure:"microphone_id"`
	// RecordDir keeps remote media on disk when set.
	RecordDir string `mapstructure:"record_dir"`
}

type Chat struct {
	RateLimit    int           `mapstructure:"rate_limit" validate:"gte=0"`
	RateInterval time.Duration `mapstructure:"rate_interval" validate:"gt=0"`
}

type Health struct {
	SpeakingInterval  time.Duration `mapstructure:"speaking_interval" validate:"gt=0"`
	SpeakingThreshold float64       `mapstructure:"speaking_threshold" validate:"gte=0,lte=1"`
	QualityInterval   time.Duration `mapstructure:"quality_interval" validate:"gt=0"`
}

type Config struct {
	Mode        string        `mapstructure:"mode" validate:"oneof=debug release test"`
	Port        int           `mapstructure:"port" validate:"gt=0,lt=65536"`
	LogLevel    string        `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	Secret      string        `mapstructure:"secret" validate:"required"`
	ReadLimit   int64         `mapstructure:"read_limit" validate:"gt=0"`
	PingPeriod  time.Duration `mapstructure:"ping_period" validate:"gt=0"`
	SessionID   string        `mapstructure:"session_id"`
	DisplayName string        `mapstructure:"display_name"`
	EndedBy     string        `mapstructure:"ended_by"`
	AutoJoin    bool          `mapstructure:"auto_join"`
	Viewport    string        `mapstructure:"viewport" validate:"oneof=wide narrow"`
	ICEServers  []string      `mapstructure:"ice_servers"`

	SessionAPI SessionAPI `mapstructure:"session_api"`
	Media      Media      `mapstructure:"media"`
	Chat       Chat       `mapstructure:"chat"`
	Health     Health     `mapstructure:"health"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "change-me")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("session_id", "")
	v.SetDefault("display_name", "")
	v.SetDefault("ended_by", "")
	v.SetDefault("auto_join", false)
	v.SetDefault("viewport", "wide")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("session_api.base_url", "http://localhost:8081/api")
	v.SetDefault("session_api.timeout", "10s")

	v.SetDefault("media.retry_delay", "500ms")
	v.SetDefault("media.retries", 3)
	v.SetDefault("media.camera_id", "")
	v.SetDefault("media.microphone_id", "")
	v.SetDefault("media.record_dir", "")

	v.SetDefault("chat.rate_limit", 5)
	v.SetDefault("chat.rate_interval", "5s")

	v.SetDefault("health.speaking_interval", "250ms")
	v.SetDefault("health.speaking_threshold", 0.1)
	v.SetDefault("health.quality_interval", "2s")
}

// Load reads .env, then config/config.<CONFIG_ENV>.yaml, then MEET_*
// variables, in increasing precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("MEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	// empty means the transport identity becomes the caption
	if cfg.DisplayName != "" {
		if err := domain.ValidateDisplayName(cfg.DisplayName); err != nil {
			return nil, fmt.Errorf("invalid config: display_name: %w", err)
		}
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("session", cfg.SessionID).
		Msg("config ready")
	return &cfg, nil
}
