package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        Server
	Log           Log
	Backend       Backend
	AWS           AWS
	Redis         Redis
	Storage       Storage
	Auth          Auth
	Notifications Notifications
	RateLimit     RateLimit
}

type Server struct {
	Port           string
	AllowedOrigins []string
}

type Log struct {
	Level  string
	Format string
}

// Backend selects the collaborator implementation: "dynamo" talks to AWS
// (DynamoDB tables, S3 buckets, Redis change feed), "memory" keeps
// everything in process for local development.
type Backend struct {
	Driver           string
	TablePrefix      string
	ProvisionOnStart bool
}

type AWS struct {
	Region   string
	Endpoint string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Storage struct {
	AvatarBucket  string
	MediaBucket   string
	PublicBaseURL string
	SignedURLTTL  time.Duration
}

type Auth struct {
	JWTSecret string
	Issuer    string
}

type Notifications struct {
	PollInterval time.Duration
}

type RateLimit struct {
	RPS   float64
	Burst int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowedorigins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("backend.driver", "dynamo")
	v.SetDefault("backend.tableprefix", "outliers_")
	v.SetDefault("backend.provisiononstart", false)
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.avatarbucket", "outliers-avatars")
	v.SetDefault("storage.mediabucket", "outliers-media")
	v.SetDefault("storage.publicbaseurl", "")
	v.SetDefault("storage.signedurlttl", 5*time.Minute)
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("notifications.pollinterval", 30*time.Second)
	v.SetDefault("ratelimit.rps", 10.0)
	v.SetDefault("ratelimit.burst", 20)
}

// LoadConfig reads .env (if present), then config/<filename>.yaml (if present),
// then OUTLIERS_* environment variables. The unprefixed PORT, AWS_REGION and
// JWT_SECRET variables are honoured too.
func LoadConfig(filename string) (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("OUTLIERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "OUTLIERS_SERVER_PORT", "PORT")
	_ = v.BindEnv("aws.region", "OUTLIERS_AWS_REGION", "AWS_REGION")
	_ = v.BindEnv("auth.jwtsecret", "OUTLIERS_AUTH_JWTSECRET", "JWT_SECRET")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		slog.Error("Unable to unmarshal config", "err", err)
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load is LoadConfig followed by ParseConfig.
func Load(filename string) (*Config, error) {
	v, err := LoadConfig(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(v)
}

func (c *Config) Validate() error {
	switch c.Backend.Driver {
	case "dynamo", "memory":
	default:
		return errors.New("backend.driver must be dynamo or memory")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtsecret (JWT_SECRET) is required")
	}
	if c.Notifications.PollInterval <= 0 {
		return errors.New("notifications.pollinterval must be positive")
	}
	return nil
}
