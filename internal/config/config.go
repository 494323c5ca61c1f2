package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/config.yaml"

const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"

	EmailTransportRabbitMQ = "rabbitmq"
	EmailTransportSMTP     = "smtp"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer `yaml:"http_server"`
	Storage    `yaml:"storage"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	Tokens     `yaml:"tokens"`
	ResetCode  `yaml:"reset_code"`
	RabbitMQ   `yaml:"rabbitmq"`
	Email      `yaml:"email"`
	Belvo      `yaml:"belvo"`
}

// MailSenderConfig is the subset read by the queue consumer binary.
type MailSenderConfig struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local"`
	RabbitMQ `yaml:"rabbitmq"`
	Email    `yaml:"email"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Storage struct {
	Driver     string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"./data/quo.db"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"postgres"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"quo"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

// Redis is optional: with an empty address revoked refresh tokens are kept in the main storage.
type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
}

type Tokens struct {
	Secret          string        `yaml:"secret" env:"TOKEN_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env-default:"24h"`
}

type ResetCode struct {
	TTL time.Duration `yaml:"ttl" env-default:"10m"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL"`
	QueueName string `yaml:"queue_name" env-default:"emails"`
}

type Email struct {
	Transport string `yaml:"transport" env:"EMAIL_TRANSPORT" env-default:"rabbitmq"`
	Host      string `yaml:"host" env:"SMTP_HOST"`
	Port      int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username  string `yaml:"username" env:"SMTP_USERNAME"`
	Password  string `yaml:"password" env:"SMTP_PASSWORD"`
	From      string `yaml:"from" env:"SMTP_FROM"`
}

type Belvo struct {
	BaseURL         string            `yaml:"base_url" env:"BELVO_API_URL" env-default:"https://sandbox.belvo.com/api/"`
	SecretID        string            `yaml:"secret_id" env:"BELVO_SECRET_ID" env-required:"true"`
	SecretPassword  string            `yaml:"secret_password" env:"BELVO_SECRET_PASSWORD" env-required:"true"`
	Timeout         time.Duration     `yaml:"timeout" env-default:"30s"`
	TestCredentials []BelvoCredential `yaml:"test_credentials"`
}

type BelvoCredential struct {
	Institution string `yaml:"institution"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// FetchConfigPath resolves the config file from the -config flag, then CONFIG_PATH.
func FetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = defaultConfigPath
	}

	return res
}

func MustLoad(configPath string) *Config {
	var cfg Config

	mustRead(configPath, &cfg)

	return &cfg
}

func MustLoadMailSender(configPath string) *MailSenderConfig {
	var cfg MailSenderConfig

	mustRead(configPath, &cfg)

	return &cfg
}

func mustRead(configPath string, cfg any) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("Config file does not exist: " + configPath)
	}

	if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
		panic("Failed to read config: " + err.Error())
	}
}
