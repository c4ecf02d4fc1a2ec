package file

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// Config keys understood by Settings.
const (
	KeyServerURL     = "server.url"
	KeyServerBaseURL = "server.base_url"

	KeyReconnectEnabled  = "reconnect.enabled"
	KeyReconnectAttempts = "reconnect.attempts"
	KeyReconnectDelay    = "reconnect.delay"

	KeyHealthTimeout    = "health.timeout"
	KeyHealthRetries    = "health.retries"
	KeyHealthRetryDelay = "health.retry_delay"
	KeyHealthInterval   = "health.interval"

	KeyRecoveryMaxAttempts  = "recovery.max_attempts"
	KeyRecoveryInitialDelay = "recovery.initial_delay"
	KeyRecoveryMultiplier   = "recovery.backoff_multiplier"
	KeyRecoveryMaxDelay     = "recovery.max_delay"

	KeyAuthSessionFile  = "auth.session_file"
	KeyAuthUserID       = "auth.user_id"
	KeyAuthTokenURL     = "auth.token_url"
	KeyAuthClientID     = "auth.client_id"
	KeyAuthClientSecret = "auth.client_secret"
	KeyAuthScopes       = "auth.scopes"
)

var settingsValidate *validator.Validate

func init() {
	settingsValidate = validator.New()
	_ = settingsValidate.RegisterValidation("wsurl", validateWebSocketURL)
}

func validateWebSocketURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "ws" || u.Scheme == "wss"
}

// Settings builds domain.Settings from the file, falling back to
// domain.DefaultSettings for absent keys, and validates the result.
func (s *ConfigStore) Settings() (domain.Settings, error) {
	out := domain.DefaultSettings()
	var errs []error

	str := func(key string, dst *string) {
		if _, ok := s.Get(key); ok {
			*dst = s.GetString(key)
		}
	}
	integer := func(key string, dst *int) {
		if _, ok := s.Get(key); ok {
			*dst = s.GetInt(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if _, ok := s.Get(key); !ok {
			return
		}
		d, err := s.GetDuration(key)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = d
	}

	str(KeyServerURL, &out.Server.URL)
	str(KeyServerBaseURL, &out.Server.BaseURL)

	if _, ok := s.Get(KeyReconnectEnabled); ok {
		out.Reconnect.Enabled = s.GetBool(KeyReconnectEnabled)
	}
	integer(KeyReconnectAttempts, &out.Reconnect.Attempts)
	dur(KeyReconnectDelay, &out.Reconnect.Delay)

	dur(KeyHealthTimeout, &out.Health.Timeout)
	integer(KeyHealthRetries, &out.Health.Retries)
	dur(KeyHealthRetryDelay, &out.Health.RetryDelay)
	dur(KeyHealthInterval, &out.Health.Interval)

	integer(KeyRecoveryMaxAttempts, &out.Recovery.MaxAttempts)
	dur(KeyRecoveryInitialDelay, &out.Recovery.InitialDelay)
	if _, ok := s.Get(KeyRecoveryMultiplier); ok {
		out.Recovery.BackoffMultiplier = s.GetFloat(KeyRecoveryMultiplier)
	}
	dur(KeyRecoveryMaxDelay, &out.Recovery.MaxDelay)

	str(KeyAuthSessionFile, &out.Auth.SessionFile)
	str(KeyAuthUserID, &out.Auth.UserID)
	str(KeyAuthTokenURL, &out.Auth.TokenURL)
	str(KeyAuthClientID, &out.Auth.ClientID)
	str(KeyAuthClientSecret, &out.Auth.ClientSecret)
	if _, ok := s.Get(KeyAuthScopes); ok {
		out.Auth.Scopes = s.GetStringSlice(KeyAuthScopes)
	}

	if len(errs) > 0 {
		return domain.Settings{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	if err := ValidateSettings(out); err != nil {
		return domain.Settings{}, err
	}
	return out, nil
}

// ValidateSettings checks field constraints, reporting every violation.
func ValidateSettings(settings domain.Settings) error {
	err := settingsValidate.Struct(settings)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}
