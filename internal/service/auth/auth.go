package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/logger"
	"github.com/nkiryanov/sessionkeeper/internal/models"
	"github.com/nkiryanov/sessionkeeper/internal/repository"
	"github.com/nkiryanov/sessionkeeper/internal/service/audit"
)

const (
	defaultRenewalTTL        = 7 * 24 * time.Hour
	defaultMaxUses           = 10
	defaultFailedLoginLimit  = 5
	defaultFailedLoginWindow = 15 * time.Minute
	defaultUsageRetries      = 3
	defaultUsageRetryDelay   = 5 * time.Millisecond
)

// Issues, verifies and parses access tokens
type AccessTokenCodec interface {
	Issue(principal models.Principal) (models.IssuedToken, error)
	Verify(token string) (models.AccessClaims, error)
	Decode(token string) (models.AccessClaims, error)
	AccessTTL() time.Duration
}

// Records principal activity without blocking the caller
type ActivityScheduler interface {
	Schedule(email string, at time.Time)
}

type noopActivity struct{}

func (noopActivity) Schedule(string, time.Time) {}

// Auth service config with sensible defaults
type Config struct {
	// Secret to sign renewal token values
	// Required to be set
	SecretKey string

	// Renewal token lifetime and max number of renewals
	// If not set than default is used
	RenewalTTL time.Duration
	MaxUses    int

	// Share of max uses after which renewal token is rotated
	// If not set than 0.8 is used
	RotationThreshold decimal.Decimal

	// Failed logins allowed inside the window before suspicious activity is reported
	// If not set than default is used
	FailedLoginLimit  int
	FailedLoginWindow time.Duration

	// Attempts to apply renewal when usage was changed concurrently
	UsageRetries    uint64
	UsageRetryDelay time.Duration

	// Verifier to check credentials on login
	// If not set than bcrypt verifier over principal repo is used
	Verifier CredentialVerifier

	// Activity update scheduler used on introspection
	// If not set activity is not tracked
	Activity ActivityScheduler

	// Clock, time.Now if not set
	Now func() time.Time
}

// Session lifecycle service
type Service struct {
	storage repository.Storage
	tokens  AccessTokenCodec
	audit   audit.Sink
	logger  logger.Logger

	verifier CredentialVerifier
	activity ActivityScheduler
	renewal  renewalValues
	rotation RotationPolicy

	renewalTTL        time.Duration
	maxUses           int
	failedLoginLimit  int
	failedLoginWindow time.Duration
	usageRetries      uint64
	usageRetryDelay   time.Duration
	now               func() time.Time
}

func NewService(cfg Config, storage repository.Storage, tokens AccessTokenCodec, sink audit.Sink, l logger.Logger) (*Service, error) {
	if storage == nil || tokens == nil || sink == nil || l == nil {
		return nil, errors.New("storage, token codec, audit sink and logger must not be nil")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.RenewalTTL, defaultRenewalTTL)
	setDefaultDuration(&cfg.FailedLoginWindow, defaultFailedLoginWindow)
	setDefaultDuration(&cfg.UsageRetryDelay, defaultUsageRetryDelay)

	setDefaultInt := func(field *int, def int) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultInt(&cfg.MaxUses, defaultMaxUses)
	setDefaultInt(&cfg.FailedLoginLimit, defaultFailedLoginLimit)

	if cfg.UsageRetries == 0 {
		cfg.UsageRetries = defaultUsageRetries
	}
	if cfg.RotationThreshold.IsZero() {
		cfg.RotationThreshold = defaultRotationThreshold
	}
	rotation, err := NewRotationPolicy(cfg.RotationThreshold)
	if err != nil {
		return nil, err
	}

	if cfg.Verifier == nil {
		cfg.Verifier = NewPasswordVerifier(storage.Principal(), DefaultHasher)
	}
	if cfg.Activity == nil {
		cfg.Activity = noopActivity{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		storage:           storage,
		tokens:            tokens,
		audit:             sink,
		logger:            l,
		verifier:          cfg.Verifier,
		activity:          cfg.Activity,
		renewal:           renewalValues{key: []byte(cfg.SecretKey)},
		rotation:          rotation,
		renewalTTL:        cfg.RenewalTTL,
		maxUses:           cfg.MaxUses,
		failedLoginLimit:  cfg.FailedLoginLimit,
		failedLoginWindow: cfg.FailedLoginWindow,
		usageRetries:      cfg.UsageRetries,
		usageRetryDelay:   cfg.UsageRetryDelay,
		now:               cfg.Now,
	}, nil
}

// Create renewal token of a new family
func (s *Service) createRenewalToken(ctx context.Context, storage repository.Storage, subject string, device models.DeviceInfo, now time.Time) (models.RenewalToken, error) {
	value, hash, err := s.renewal.Generate()
	if err != nil {
		return models.RenewalToken{}, err
	}

	token, err := storage.RenewalToken().Create(ctx, models.RenewalToken{
		ID:        uuid.New(),
		Value:     value,
		ValueHash: hash,
		Subject:   subject,
		FamilyID:  uuid.New(),
		Device:    device,
		UsedCount: 0,
		MaxUses:   s.maxUses,
		IsActive:  true,
		CreatedAt: now,
		ExpiresAt: now.Add(s.renewalTTL),
	})
	if err != nil {
		return models.RenewalToken{}, fmt.Errorf("error while saving renewal token. Err: %w", err)
	}

	return token, nil
}

func (s *Service) record(ctx context.Context, name string, subject string, device models.DeviceInfo, reason string, attrs map[string]string) {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	if device.DeviceID != "" {
		attrs["device_id"] = device.DeviceID
	}
	if device.DeviceType != "" {
		attrs["device_type"] = device.DeviceType
	}

	s.audit.Record(ctx, audit.Event{
		Name:       name,
		Subject:    subject,
		IPAddress:  device.IPAddress,
		Reason:     reason,
		Attributes: attrs,
		At:         s.now(),
	})
}

// Keep taxonomy errors as is and hide everything else behind ErrInternal
// Details of unexpected errors are logged only
func (s *Service) internalError(op string, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}

	s.logger.Error("unexpected error", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, apperrors.ErrInternal)
}
