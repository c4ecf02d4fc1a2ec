package domain

import "time"

// Settings is the full client configuration.
type Settings struct {
	Server    ServerSettings
	Reconnect ReconnectSettings
	Health    HealthSettings
	Recovery  RecoverySettings
	Auth      AuthSettings
}

// ServerSettings locates the backend.
type ServerSettings struct {
	// URL is the websocket endpoint of the event channel.
	URL string `validate:"required,wsurl"`

	// BaseURL is the HTTP base used for the /health fallback.
	BaseURL string `validate:"omitempty,url"`
}

// AuthSettings selects where the identity comes from. A session file wins;
// otherwise a token URL enables the OAuth2 client-credentials flow.
type AuthSettings struct {
	// SessionFile holds {userId, token, expiresAt} written by `login`.
	SessionFile string

	UserID       string
	TokenURL     string   `validate:"omitempty,url"`
	ClientID     string   `validate:"required_with=TokenURL"`
	ClientSecret string   `validate:"required_with=TokenURL"`
	Scopes       []string `validate:"dive,required"`
}

// ReconnectSettings is the transport-level reconnection policy:
// a fixed delay between a capped number of attempts.
type ReconnectSettings struct {
	Enabled  bool
	Attempts int           `validate:"gte=0,lte=100"`
	Delay    time.Duration `validate:"gte=0"`
}

// HealthSettings configures the health monitor.
type HealthSettings struct {
	Timeout    time.Duration `validate:"gt=0"`
	Retries    int           `validate:"gte=1,lte=10"`
	RetryDelay time.Duration `validate:"gte=0"`
	Interval   time.Duration `validate:"gt=0"`
}

// RecoverySettings configures the exponential backoff.
type RecoverySettings struct {
	MaxAttempts       int           `validate:"gte=1"`
	InitialDelay      time.Duration `validate:"gt=0"`
	BackoffMultiplier float64       `validate:"gte=1"`
	MaxDelay          time.Duration `validate:"gtefield=InitialDelay"`
}

// DefaultSettings returns sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			URL:     "ws://localhost:8080/socket",
			BaseURL: "http://localhost:8080",
		},
		Reconnect: DefaultReconnectSettings(),
		Health:    DefaultHealthSettings(),
		Recovery:  DefaultRecoverySettings(),
	}
}

// DefaultReconnectSettings returns the transport reconnection defaults.
func DefaultReconnectSettings() ReconnectSettings {
	return ReconnectSettings{
		Enabled:  true,
		Attempts: 5,
		Delay:    1 * time.Second,
	}
}

// DefaultHealthSettings returns the health monitor defaults.
func DefaultHealthSettings() HealthSettings {
	return HealthSettings{
		Timeout:    5 * time.Second,
		Retries:    3,
		RetryDelay: 1 * time.Second,
		Interval:   30 * time.Second,
	}
}

// DefaultRecoverySettings returns the backoff defaults.
func DefaultRecoverySettings() RecoverySettings {
	return RecoverySettings{
		MaxAttempts:       5,
		InitialDelay:      1 * time.Second,
		BackoffMultiplier: 2,
		MaxDelay:          30 * time.Second,
	}
}
