package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "GYMMASTER"

type Config struct {
	App struct {
		Env string `mapstructure:"env"`
	} `mapstructure:"app"`
	Server struct {
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Database struct {
		URL         string        `mapstructure:"url"`
		MaxConns    int           `mapstructure:"max_conns"`
		PingTimeout time.Duration `mapstructure:"ping_timeout"`
	} `mapstructure:"database"`
	Log struct {
		Level    string `mapstructure:"level"`
		Encoding string `mapstructure:"encoding"`
	} `mapstructure:"log"`
	JWT struct {
		PrivateKey     string        `mapstructure:"private_key"`
		PrivateKeyFile string        `mapstructure:"private_key_file"`
		PublicKey      string        `mapstructure:"public_key"`
		PublicKeyFile  string        `mapstructure:"public_key_file"`
		AccessTTL      time.Duration `mapstructure:"access_ttl"`
		RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
	} `mapstructure:"jwt"`
	Security struct {
		InternalToken     string `mapstructure:"internal_token"`
		InternalTokenFile string `mapstructure:"internal_token_file"`
	} `mapstructure:"security"`
	CORS struct {
		AllowOrigins []string `mapstructure:"allow_origins"`
	} `mapstructure:"cors"`
	CheckIn struct {
		AutoCloseHours    int    `mapstructure:"auto_close_hours"`
		AutoCloseSchedule string `mapstructure:"auto_close_schedule"`
	} `mapstructure:"checkin"`
	Member struct {
		QRTTLHours int `mapstructure:"qr_ttl_hours"`
	} `mapstructure:"member"`
	Audit struct {
		RetentionDays   int           `mapstructure:"retention_days"`
		QueueSize       int           `mapstructure:"queue_size"`
		Workers         int           `mapstructure:"workers"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		CleanupSchedule string        `mapstructure:"cleanup_schedule"`
	} `mapstructure:"audit"`
	Membership struct {
		ExpirySchedule string `mapstructure:"expiry_schedule"`
	} `mapstructure:"membership"`
	Mail struct {
		Driver    string `mapstructure:"driver"`
		FromName  string `mapstructure:"from_name"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"mail"`
	SMTP struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		UseTLS   bool   `mapstructure:"use_tls"`
	} `mapstructure:"smtp"`
	MailerSend struct {
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"mailersend"`
	NATS struct {
		URL           string `mapstructure:"url"`
		SubjectPrefix string `mapstructure:"subject_prefix"`
		Stream        string `mapstructure:"stream"`
	} `mapstructure:"nats"`
	Redis struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"redis"`
	RateLimit struct {
		LoginPerMinute   int `mapstructure:"login_per_minute"`
		CheckInPerMinute int `mapstructure:"checkin_per_minute"`
	} `mapstructure:"ratelimit"`
	Stripe struct {
		SecretKey string `mapstructure:"secret_key"`
		Currency  string `mapstructure:"currency"`
	} `mapstructure:"stripe"`
	OTel struct {
		Endpoint    string `mapstructure:"endpoint"`
		ServiceName string `mapstructure:"service_name"`
	} `mapstructure:"otel"`
}

// Load reads config.yaml (optional) under GYMMASTER_* env overrides. A .env
// file in the working directory is loaded first and never overrides the
// real environment.
func Load(cfgFile string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if strings.TrimSpace(cfgFile) != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.url", envPrefix+"_DATABASE_URL", "DATABASE_URL")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config failed: %w", err)
	}

	if strings.TrimSpace(cfg.Security.InternalToken) == "" && strings.TrimSpace(cfg.Security.InternalTokenFile) != "" {
		// #nosec G304 -- path is provided by operator config.
		raw, err := os.ReadFile(strings.TrimSpace(cfg.Security.InternalTokenFile))
		if err != nil {
			return Config{}, fmt.Errorf("read security.internal_token_file failed: %w", err)
		}
		cfg.Security.InternalToken = strings.TrimSpace(string(raw))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.ping_timeout", "3s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("jwt.private_key", "")
	v.SetDefault("jwt.private_key_file", "")
	v.SetDefault("jwt.public_key", "")
	v.SetDefault("jwt.public_key_file", "")
	v.SetDefault("jwt.access_ttl", "2h")
	v.SetDefault("jwt.refresh_ttl", "168h")
	v.SetDefault("security.internal_token", "")
	v.SetDefault("security.internal_token_file", "")
	v.SetDefault("cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("checkin.auto_close_hours", 24)
	v.SetDefault("checkin.auto_close_schedule", "0 0 * * * *")
	v.SetDefault("member.qr_ttl_hours", 24)
	v.SetDefault("audit.retention_days", 90)
	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("audit.workers", 2)
	v.SetDefault("audit.write_timeout", "5s")
	v.SetDefault("audit.cleanup_schedule", "0 30 3 * * *")
	v.SetDefault("membership.expiry_schedule", "0 5 0 * * *")
	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.from_name", "GymMaster")
	v.SetDefault("mail.from_email", "no-reply@gymmaster.local")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.use_tls", false)
	v.SetDefault("mailersend.api_key", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "gymmaster")
	v.SetDefault("nats.stream", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("ratelimit.login_per_minute", 10)
	v.SetDefault("ratelimit.checkin_per_minute", 30)
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.currency", "usd")
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.service_name", "gymmaster-api")
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("database.url is required")
	}
	if c.Database.MaxConns <= 0 {
		return errors.New("database.max_conns must be greater than 0")
	}
	if c.Database.PingTimeout <= 0 {
		return errors.New("database.ping_timeout must be greater than 0")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.CheckIn.AutoCloseHours < 1 {
		return errors.New("checkin.auto_close_hours must be at least 1")
	}
	if c.Member.QRTTLHours < 1 {
		return errors.New("member.qr_ttl_hours must be at least 1")
	}
	if c.Audit.RetentionDays < 1 {
		return errors.New("audit.retention_days must be at least 1")
	}

	if len(c.CORS.AllowOrigins) == 0 {
		return errors.New("cors.allow_origins must not be empty")
	}
	for _, origin := range c.CORS.AllowOrigins {
		if strings.TrimSpace(origin) == "*" {
			return errors.New("cors.allow_origins must not contain wildcard *")
		}
	}
	return nil
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.App.Env), "development")
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c Config) QRTTL() time.Duration {
	return time.Duration(c.Member.QRTTLHours) * time.Hour
}

func NewLogger(cfg Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			return nil, fmt.Errorf("invalid log.level: %w", err)
		}
	}
	if cfg.Log.Encoding != "" {
		zapCfg.Encoding = cfg.Log.Encoding
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger failed: %w", err)
	}
	return logger, nil
}
