package environments

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	WhatsApp  WhatsAppConfig
	Messenger MessengerConfig
	Media     MediaConfig
	Sweeper   SweeperConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type CacheConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// WhatsAppConfig holds the Cloud API credentials for the phone-number-based
// platform.
type WhatsAppConfig struct {
	GraphBaseURL  string
	VerifyToken   string
	AccessToken   string
	PhoneNumberID string
	DefaultPeer   string
	Timeout       time.Duration
}

// MessengerConfig holds the page credentials for the page-scoped platform.
type MessengerConfig struct {
	GraphBaseURL    string
	VerifyToken     string
	PageAccessToken string
	DefaultPeer     string
	Timeout         time.Duration
}

type MediaConfig struct {
	Root string
}

type SweeperConfig struct {
	Interval time.Duration
	MinAge   time.Duration
}

type AuthConfig struct {
	ClientAPIKey string
	AdminAPIKey  string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: GetEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     GetEnv("DB_HOST", "localhost"),
			Port:     GetEnv("DB_PORT", "3306"),
			User:     GetEnv("DB_USER", "root"),
			Password: GetEnv("DB_PASSWORD", ""),
			DBName:   GetEnv("DB_NAME", "unichat"),
		},
		Cache: CacheConfig{
			Host:     GetEnv("CACHE_HOST", "localhost"),
			Port:     GetEnv("CACHE_PORT", "6379"),
			Password: GetEnv("CACHE_PASSWORD", ""),
			DB:       GetEnvAsInt("CACHE_DB", 0),
		},
		WhatsApp: WhatsAppConfig{
			GraphBaseURL:  GetEnv("GRAPH_BASE_URL", "https://graph.facebook.com/v21.0"),
			VerifyToken:   GetEnv("WHATSAPP_VERIFY_TOKEN", ""),
			AccessToken:   GetEnv("WHATSAPP_ACCESS_TOKEN", ""),
			PhoneNumberID: GetEnv("PHONE_NUMBER_ID", ""),
			DefaultPeer:   GetEnv("WHATSAPP_DEFAULT_PEER", ""),
			Timeout:       GetEnvAsDuration("PLATFORM_TIMEOUT", 30*time.Second),
		},
		Messenger: MessengerConfig{
			GraphBaseURL:    GetEnv("GRAPH_BASE_URL", "https://graph.facebook.com/v21.0"),
			VerifyToken:     GetEnv("MESSENGER_VERIFY_TOKEN", ""),
			PageAccessToken: GetEnv("PAGE_ACCESS_TOKEN", ""),
			DefaultPeer:     GetEnv("MESSENGER_DEFAULT_PEER", ""),
			Timeout:         GetEnvAsDuration("PLATFORM_TIMEOUT", 30*time.Second),
		},
		Media: MediaConfig{
			Root: GetEnv("MEDIA_ROOT", "./data/media"),
		},
		Sweeper: SweeperConfig{
			Interval: GetEnvAsDuration("SWEEPER_INTERVAL", 30*time.Minute),
			MinAge:   GetEnvAsDuration("SWEEPER_MIN_AGE", time.Hour),
		},
		Auth: AuthConfig{
			ClientAPIKey: GetEnv("CLIENT_API_KEY", ""),
			AdminAPIKey:  GetEnv("ADMIN_API_KEY", ""),
		},
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
