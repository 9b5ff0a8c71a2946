package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	Database    Database
	SessionKey  string `env:"SESSION_KEY" envDefault:"dev-session-key"`

	Backend Backend `envPrefix:"BACKEND_"`
	Payment Payment `envPrefix:"PAYMENT_"`
	Watch   Watch   `envPrefix:"WATCH_"`

	Sessions Sessions `envPrefix:"SESSION_"`
}

type Backend struct {
	BaseApiURL string        `env:"BASE_API_URL" envDefault:"http://localhost:5000/api"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"30s"`

	// JWTSecret, when shared with the backend, lets the portal read the
	// viewer from the token cookie without a profile round trip.
	JWTSecret   string `env:"JWT_SECRET"`
	TokenCookie string `env:"TOKEN_COOKIE" envDefault:"token"`
}

type Payment struct {
	VodafoneNumber  string `env:"VODAFONE_NUMBER" envDefault:"01012345678"`
	InstapayAccount string `env:"INSTAPAY_ACCOUNT" envDefault:"user@instapay"`
	MaxReceiptBytes int64  `env:"MAX_RECEIPT_BYTES" envDefault:"5242880"`
}

// Sessions bounds the per-browser state kept in memory.
type Sessions struct {
	IdleTimeout   time.Duration `env:"IDLE_TIMEOUT" envDefault:"30m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
}

type Watch struct {
	ThresholdPercent float64       `env:"THRESHOLD_PERCENT" envDefault:"90"`
	FallbackAfter    time.Duration `env:"FALLBACK_AFTER" envDefault:"5s"`
}

// Database configures the optional completion store. Driver "none" keeps
// progress in memory only.
type Database struct {
	Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	URL    string `env:"DATABASE_URL" envDefault:"progress.db"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
