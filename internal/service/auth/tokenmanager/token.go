package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/models"
)

const (
	defaultAccessTokenTTL = 15 * time.Minute
	defaultSigningMethod  = "HS256"
	defaultIssuer         = "sessionkeeper"
	defaultAudience       = "sessionkeeper-api"
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign access token
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Fixed 'iss' and 'aud' claims
	// If not set than default is used
	Issuer   string
	Audience string

	// Access token lifetime
	// If not set than default is used
	AccessTTL time.Duration

	// Clock, time.Now if not set
	Now func() time.Time
}

// Encodes and verifies stateless access tokens
// Never touches storage
type TokenManager struct {
	key       []byte
	alg       jwt.SigningMethod
	issuer    string
	audience  string
	accessTTL time.Duration
	now       func() time.Time
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing method %q, only HMAC methods allowed", cfg.Alg)
	}

	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.Issuer, defaultIssuer)
	setDefault(&cfg.Audience, defaultAudience)

	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = defaultAccessTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenManager{
		key:       []byte(cfg.SecretKey),
		alg:       alg,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		accessTTL: cfg.AccessTTL,
		now:       cfg.Now,
	}, nil
}

func (m *TokenManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// Issue signed access token for the principal
// The only place where access claims are built, so every token has the same shape
func (m *TokenManager) Issue(principal models.Principal) (models.IssuedToken, error) {
	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(m.accessTTL)

	token := jwt.NewWithClaims(
		m.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   principal.Email,
				Issuer:    m.issuer,
				Audience:  jwt.ClaimStrings{m.audience},
				IssuedAt:  jwt.NewNumericDate(now),
				NotBefore: jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Role: principal.Role,
			Name: principal.DisplayName,
			Kind: models.TokenKindAccess,
		},
	)

	access, err := token.SignedString(m.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: access, ExpiresAt: expiresAt}, nil
}

// Verify signature first and then time, issuer and audience claims
// Every failure is classified as expired, not yet valid or malformed
func (m *TokenManager) Verify(access string) (models.AccessClaims, error) {
	claims := &AccessTokenClaims{}

	_, err := jwt.ParseWithClaims(
		access,
		claims,
		func(t *jwt.Token) (any, error) {
			return m.key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return models.AccessClaims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	}

	validator := jwt.NewValidator(
		jwt.WithTimeFunc(m.now),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
	)
	err = validator.Validate(claims)

	switch {
	case err == nil:
		return toModel(claims), nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return models.AccessClaims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return models.AccessClaims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenNotYetValid, err)
	default:
		return models.AccessClaims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	}
}

// Decode claims without any verification
// Must never be used for authorization
func (m *TokenManager) Decode(access string) (models.AccessClaims, error) {
	claims := &AccessTokenClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(access, claims)
	if err != nil {
		return models.AccessClaims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	}

	return toModel(claims), nil
}

func toModel(c *AccessTokenClaims) models.AccessClaims {
	timeOf := func(d *jwt.NumericDate) time.Time {
		if d == nil {
			return time.Time{}
		}
		return d.Time
	}

	return models.AccessClaims{
		TokenID:     c.ID,
		Subject:     c.Subject,
		Role:        c.Role,
		DisplayName: c.Name,
		Kind:        c.Kind,
		Issuer:      c.Issuer,
		Audience:    c.Audience,
		IssuedAt:    timeOf(c.IssuedAt),
		NotBefore:   timeOf(c.NotBefore),
		ExpiresAt:   timeOf(c.ExpiresAt),
	}
}
