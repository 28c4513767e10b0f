package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Auth        AuthConfig
	ServiceArea ServiceAreaConfig
	Dispatch    DispatchConfig
	Booking     BookingConfig
	Fare        FareConfig
	RateLimit   RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"SERVER_HOST"`
	Port         int           `mapstructure:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     int    `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	DBName   string `mapstructure:"POSTGRES_DB"`
	SSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	MaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`
	MinConns int32  `mapstructure:"POSTGRES_MIN_CONNS"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     int    `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	PoolSize int    `mapstructure:"REDIS_POOL_SIZE"`
}

// AuthConfig holds token verification settings. OTP issuance and password
// handling live in the auth provider; only the verification side is here.
type AuthConfig struct {
	JWTSecret        string `mapstructure:"JWT_SECRET"`
	BcryptSaltRounds int    `mapstructure:"BCRYPT_SALT_ROUNDS"`
}

// ServiceAreaConfig defines the annulus bookings must fall inside.
type ServiceAreaConfig struct {
	CenterLat         float64 `mapstructure:"SERVICE_AREA_CENTER_LAT"`
	CenterLng         float64 `mapstructure:"SERVICE_AREA_CENTER_LNG"`
	CenterName        string  `mapstructure:"SERVICE_AREA_CENTER_NAME"`
	RadiusMinM        float64 `mapstructure:"SERVICE_AREA_RADIUS_MIN"`
	RadiusMaxM        float64 `mapstructure:"SERVICE_AREA_RADIUS_MAX"`
	WarningThresholdM float64 `mapstructure:"SERVICE_AREA_WARNING_THRESHOLD"`
	Strict            bool    `mapstructure:"SERVICE_AREA_STRICT"`
}

// DispatchConfig controls candidate discovery.
type DispatchConfig struct {
	RadiusMeters float64 `mapstructure:"DISPATCH_RADIUS_METERS"`
}

// BookingConfig holds booking-core tunables.
type BookingConfig struct {
	LockTTL          time.Duration `mapstructure:"BOOKING_LOCK_TTL_MS"`
	SlotGenGuard     time.Duration `mapstructure:"SLOT_GEN_GUARD_MS"`
	MaxPackageWeight float64       `mapstructure:"MAX_PACKAGE_WEIGHT_KG"`
	MaxDistanceKm    float64       `mapstructure:"MAX_DISTANCE_KM"`
	MinAmountINR     float64       `mapstructure:"MIN_BOOKING_AMOUNT_INR"`
}

// FareConfig holds the pricing parameters for the 2-wheeler fare pipeline.
type FareConfig struct {
	BaseFare  float64 `mapstructure:"FARE_BASE_INR"`
	PerKmRate float64 `mapstructure:"FARE_PER_KM_INR"`
}

// RateLimitConfig holds per-surface request budgets. The numbers are
// defaults, not contracts; ops may tune them per deployment.
type RateLimitConfig struct {
	AuthPer15Min    int `mapstructure:"RATE_LIMIT_AUTH_PER_15MIN"`
	OTPPer5Min      int `mapstructure:"RATE_LIMIT_OTP_PER_5MIN"`
	BookingPerHour  int `mapstructure:"RATE_LIMIT_BOOKING_PER_HOUR"`
	UploadPerHour   int `mapstructure:"RATE_LIMIT_UPLOAD_PER_HOUR"`
	GeneralPer15Min int `mapstructure:"RATE_LIMIT_GENERAL_PER_15MIN"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// Addr returns the Redis address in host:port format.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// ── Defaults ────────────────────────────────────────
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "5s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "swiftparcel")
	viper.SetDefault("POSTGRES_PASSWORD", "swiftparcel_secret")
	viper.SetDefault("POSTGRES_DB", "swiftparcel_db")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_MAX_CONNS", 50)
	viper.SetDefault("POSTGRES_MIN_CONNS", 10)

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 100)

	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("BCRYPT_SALT_ROUNDS", 12)

	// Bengaluru city centre; the 25 km outer bound matches the default
	// dispatch radius so drivers are never notified of out-of-area pickups.
	viper.SetDefault("SERVICE_AREA_CENTER_LAT", 12.9716)
	viper.SetDefault("SERVICE_AREA_CENTER_LNG", 77.5946)
	viper.SetDefault("SERVICE_AREA_CENTER_NAME", "Bengaluru")
	viper.SetDefault("SERVICE_AREA_RADIUS_MIN", 0)
	viper.SetDefault("SERVICE_AREA_RADIUS_MAX", 25000)
	viper.SetDefault("SERVICE_AREA_WARNING_THRESHOLD", 20000)
	viper.SetDefault("SERVICE_AREA_STRICT", true)

	viper.SetDefault("DISPATCH_RADIUS_METERS", 25000)

	viper.SetDefault("BOOKING_LOCK_TTL_MS", 10000)
	viper.SetDefault("SLOT_GEN_GUARD_MS", 5000)
	viper.SetDefault("MAX_PACKAGE_WEIGHT_KG", 50)
	viper.SetDefault("MAX_DISTANCE_KM", 100)
	viper.SetDefault("MIN_BOOKING_AMOUNT_INR", 50)

	viper.SetDefault("FARE_BASE_INR", 40)
	viper.SetDefault("FARE_PER_KM_INR", 12)

	viper.SetDefault("RATE_LIMIT_AUTH_PER_15MIN", 5)
	viper.SetDefault("RATE_LIMIT_OTP_PER_5MIN", 3)
	viper.SetDefault("RATE_LIMIT_BOOKING_PER_HOUR", 10)
	viper.SetDefault("RATE_LIMIT_UPLOAD_PER_HOUR", 20)
	viper.SetDefault("RATE_LIMIT_GENERAL_PER_15MIN", 1000)

	// Try to read .env file. If it doesn't exist (e.g., inside Docker),
	// env vars injected by docker-compose env_file are used instead.
	_ = viper.ReadInConfig()

	cfg := &Config{}

	// ── Server ──────────────────────────────────────────
	cfg.Server = ServerConfig{
		Host:         viper.GetString("SERVER_HOST"),
		Port:         viper.GetInt("SERVER_PORT"),
		ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
		IdleTimeout:  viper.GetDuration("SERVER_IDLE_TIMEOUT"),
	}

	// ── Postgres ────────────────────────────────────────
	cfg.Postgres = PostgresConfig{
		Host:     viper.GetString("POSTGRES_HOST"),
		Port:     viper.GetInt("POSTGRES_PORT"),
		User:     viper.GetString("POSTGRES_USER"),
		Password: viper.GetString("POSTGRES_PASSWORD"),
		DBName:   viper.GetString("POSTGRES_DB"),
		SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		MaxConns: viper.GetInt32("POSTGRES_MAX_CONNS"),
		MinConns: viper.GetInt32("POSTGRES_MIN_CONNS"),
	}

	// ── Redis ───────────────────────────────────────────
	cfg.Redis = RedisConfig{
		Host:     viper.GetString("REDIS_HOST"),
		Port:     viper.GetInt("REDIS_PORT"),
		Password: viper.GetString("REDIS_PASSWORD"),
		DB:       viper.GetInt("REDIS_DB"),
		PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
	}

	// ── Auth ────────────────────────────────────────────
	cfg.Auth = AuthConfig{
		JWTSecret:        viper.GetString("JWT_SECRET"),
		BcryptSaltRounds: viper.GetInt("BCRYPT_SALT_ROUNDS"),
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}
	if r := cfg.Auth.BcryptSaltRounds; r < 10 || r > 16 {
		return nil, fmt.Errorf("config: BCRYPT_SALT_ROUNDS must be in 10..16, got %d", r)
	}

	// ── Service area ────────────────────────────────────
	cfg.ServiceArea = ServiceAreaConfig{
		CenterLat:         viper.GetFloat64("SERVICE_AREA_CENTER_LAT"),
		CenterLng:         viper.GetFloat64("SERVICE_AREA_CENTER_LNG"),
		CenterName:        viper.GetString("SERVICE_AREA_CENTER_NAME"),
		RadiusMinM:        viper.GetFloat64("SERVICE_AREA_RADIUS_MIN"),
		RadiusMaxM:        viper.GetFloat64("SERVICE_AREA_RADIUS_MAX"),
		WarningThresholdM: viper.GetFloat64("SERVICE_AREA_WARNING_THRESHOLD"),
		Strict:            viper.GetBool("SERVICE_AREA_STRICT"),
	}
	if cfg.ServiceArea.RadiusMinM > cfg.ServiceArea.RadiusMaxM {
		return nil, fmt.Errorf("config: SERVICE_AREA_RADIUS_MIN exceeds SERVICE_AREA_RADIUS_MAX")
	}

	// ── Dispatch / booking / fare / limits ──────────────
	cfg.Dispatch = DispatchConfig{
		RadiusMeters: viper.GetFloat64("DISPATCH_RADIUS_METERS"),
	}

	cfg.Booking = BookingConfig{
		LockTTL:          time.Duration(viper.GetInt64("BOOKING_LOCK_TTL_MS")) * time.Millisecond,
		SlotGenGuard:     time.Duration(viper.GetInt64("SLOT_GEN_GUARD_MS")) * time.Millisecond,
		MaxPackageWeight: viper.GetFloat64("MAX_PACKAGE_WEIGHT_KG"),
		MaxDistanceKm:    viper.GetFloat64("MAX_DISTANCE_KM"),
		MinAmountINR:     viper.GetFloat64("MIN_BOOKING_AMOUNT_INR"),
	}

	cfg.Fare = FareConfig{
		BaseFare:  viper.GetFloat64("FARE_BASE_INR"),
		PerKmRate: viper.GetFloat64("FARE_PER_KM_INR"),
	}

	cfg.RateLimit = RateLimitConfig{
		AuthPer15Min:    viper.GetInt("RATE_LIMIT_AUTH_PER_15MIN"),
		OTPPer5Min:      viper.GetInt("RATE_LIMIT_OTP_PER_5MIN"),
		BookingPerHour:  viper.GetInt("RATE_LIMIT_BOOKING_PER_HOUR"),
		UploadPerHour:   viper.GetInt("RATE_LIMIT_UPLOAD_PER_HOUR"),
		GeneralPer15Min: viper.GetInt("RATE_LIMIT_GENERAL_PER_15MIN"),
	}

	return cfg, nil
}
