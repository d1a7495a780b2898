package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/utils/auth"
	"gorm.io/gorm"
)

// Mailer delivers recovery and verification links.
type Mailer interface {
	SendRecoveryEmail(ctx context.Context, to, name, link string) error
	SendVerificationEmail(ctx context.Context, to, name, link string) error
}

type AccountConfig struct {
	// ProjectID namespaces session keys and is the token issuer.
	ProjectID       string
	Secret          string
	SessionTTL      time.Duration
	RecoveryTTL     time.Duration
	VerificationTTL time.Duration
}

// Session is an authenticated email/password session.
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountService is the identity API of the gateway.
type AccountService interface {
	Create(ctx context.Context, id, email, password, name string) (*model.Account, error)
	CreateEmailSession(ctx context.Context, email, password string) (*Session, error)
	Get(ctx context.Context, token string) (*model.Account, error)
	DeleteSession(ctx context.Context, token string) error
	CreateRecovery(ctx context.Context, email, redirectURL string) error
	UpdateRecovery(ctx context.Context, userID, secret, password, confirm string) error
	CreateVerification(ctx context.Context, token, redirectURL string) error
	UpdateVerification(ctx context.Context, userID, secret string) error
}

// Account implements AccountService with accounts in postgres and sessions in redis.
type Account struct {
	db       *gorm.DB
	redis    *redis.Client
	jwt      *auth.JWTManager
	mailer   Mailer
	config   AccountConfig
	validate *validator.Validate
}

func NewAccount(db *gorm.DB, rdb *redis.Client, mailer Mailer, config AccountConfig) *Account {
	if config.SessionTTL <= 0 {
		config.SessionTTL = 7 * 24 * time.Hour
	}
	if config.RecoveryTTL <= 0 {
		config.RecoveryTTL = time.Hour
	}
	if config.VerificationTTL <= 0 {
		config.VerificationTTL = 7 * 24 * time.Hour
	}

	return &Account{
		db:     db,
		redis:  rdb,
		mailer: mailer,
		config: config,
		jwt: auth.NewJWTManager(auth.JWTConfig{
			Secret: config.Secret,
			Expiry: config.SessionTTL,
			Issuer: config.ProjectID,
		}),
		validate: validator.New(),
	}
}

func errInvalidCredentials() error {
	return NewError(http.StatusUnauthorized, TypeUnauthorized, "Invalid credentials. Please check the email and password.")
}

func errNoSession() error {
	return NewError(http.StatusUnauthorized, TypeUnauthorized, "No active session.")
}

func errInvalidToken() error {
	return NewError(http.StatusUnauthorized, TypeInvalidToken, "Invalid token passed in the request.")
}

func (a *Account) sessionKey(jti string) string {
	return fmt.Sprintf("%s:session:%s", a.config.ProjectID, jti)
}

func (a *Account) accountSessionsKey(accountID string) string {
	return fmt.Sprintf("%s:sessions:%s", a.config.ProjectID, accountID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *Account) Create(ctx context.Context, id, email, password, name string) (*model.Account, error) {
	email = normalizeEmail(email)
	if err := a.validate.Var(email, "required,email"); err != nil {
		return nil, NewError(http.StatusBadRequest, TypeInvalidArgument, "Invalid `email` param: Value must be a valid email address")
	}
	if strings.TrimSpace(name) == "" {
		return nil, NewError(http.StatusBadRequest, TypeInvalidArgument, "Invalid `name` param: Value must not be empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, NewError(http.StatusBadRequest, TypeInvalidArgument, "Invalid `password` param: Password must be at least 8 characters")
		}
		return nil, Translate(err)
	}

	if id == "" {
		id = uuid.New().String()
	}
	account := &model.Account{
		ID:           id,
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
	}

	if err := a.db.WithContext(ctx).Create(account).Error; err != nil {
		translated := Translate(err)
		if IsConflict(translated) {
			return nil, NewError(http.StatusConflict, TypeUserExists, "A user with the same id, email, or phone already exists in this project.")
		}
		return nil, translated
	}

	return account, nil
}

func (a *Account) CreateEmailSession(ctx context.Context, email, password string) (*Session, error) {
	var account model.Account
	err := a.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInvalidCredentials()
	}
	if err != nil {
		return nil, Translate(err)
	}

	if err := auth.VerifyPassword(account.PasswordHash, password); err != nil {
		return nil, errInvalidCredentials()
	}

	return a.newSession(ctx, account.ID)
}

func (a *Account) newSession(ctx context.Context, accountID string) (*Session, error) {
	token, jti, expiresAt, err := a.jwt.GenerateSessionToken(accountID)
	if err != nil {
		return nil, Translate(fmt.Errorf("failed to sign session token: %w", err))
	}

	ttl := a.jwt.Expiry()
	_, err = a.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, a.sessionKey(jti), accountID, ttl)
		pipe.SAdd(ctx, a.accountSessionsKey(accountID), jti)
		pipe.Expire(ctx, a.accountSessionsKey(accountID), ttl)
		return nil
	})
	if err != nil {
		return nil, Translate(fmt.Errorf("failed to store session: %w", err))
	}

	return &Session{ID: jti, AccountID: accountID, Token: token, ExpiresAt: expiresAt}, nil
}

// session resolves a token to its live session claims.
func (a *Account) session(ctx context.Context, token string) (*auth.Claims, error) {
	if token == "" {
		return nil, errNoSession()
	}

	claims, err := a.jwt.ValidateToken(token)
	if err != nil {
		return nil, errNoSession()
	}

	accountID, err := a.redis.Get(ctx, a.sessionKey(claims.ID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, errNoSession()
	}
	if err != nil {
		return nil, Translate(fmt.Errorf("failed to load session: %w", err))
	}
	if accountID != claims.AccountID {
		return nil, errNoSession()
	}

	return claims, nil
}

// Get returns the account that owns the session token.
func (a *Account) Get(ctx context.Context, token string) (*model.Account, error) {
	claims, err := a.session(ctx, token)
	if err != nil {
		return nil, err
	}

	var account model.Account
	err = a.db.WithContext(ctx).Where("id = ?", claims.AccountID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNoSession()
	}
	if err != nil {
		return nil, Translate(err)
	}
	return &account, nil
}

// DeleteSession ends the session identified by token.
func (a *Account) DeleteSession(ctx context.Context, token string) error {
	claims, err := a.session(ctx, token)
	if err != nil {
		return err
	}

	_, err = a.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, a.sessionKey(claims.ID))
		pipe.SRem(ctx, a.accountSessionsKey(claims.AccountID), claims.ID)
		return nil
	})
	if err != nil {
		return Translate(fmt.Errorf("failed to delete session: %w", err))
	}
	return nil
}

func (a *Account) deleteAllSessions(ctx context.Context, accountID string) error {
	setKey := a.accountSessionsKey(accountID)
	ids, err := a.redis.SMembers(ctx, setKey).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, a.sessionKey(id))
	}
	keys = append(keys, setKey)
	return a.redis.Del(ctx, keys...).Err()
}

func (a *Account) CreateRecovery(ctx context.Context, email, redirectURL string) error {
	if err := checkRedirect(redirectURL); err != nil {
		return err
	}

	var account model.Account
	err := a.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewError(http.StatusNotFound, TypeUserNotFound, "User with the requested ID could not be found.")
	}
	if err != nil {
		return Translate(err)
	}

	link, err := a.issueToken(ctx, &account, model.TokenPurposeRecovery, a.config.RecoveryTTL, redirectURL)
	if err != nil {
		return err
	}

	if err := a.mailer.SendRecoveryEmail(ctx, account.Email, account.Name, link); err != nil {
		return Translate(fmt.Errorf("failed to send recovery email: %w", err))
	}
	return nil
}

// UpdateRecovery sets a new password using a recovery secret and signs the
// account out everywhere.
func (a *Account) UpdateRecovery(ctx context.Context, userID, secret, password, confirm string) error {
	if password != confirm {
		return NewError(http.StatusBadRequest, TypeInvalidArgument, "Passwords do not match")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return NewError(http.StatusBadRequest, TypeInvalidArgument, "Invalid `password` param: Password must be at least 8 characters")
		}
		return Translate(err)
	}

	err = a.consumeToken(ctx, userID, secret, model.TokenPurposeRecovery, func(tx *gorm.DB) error {
		return tx.Model(&model.Account{}).Where("id = ?", userID).Update("password_hash", hash).Error
	})
	if err != nil {
		return err
	}

	if err := a.deleteAllSessions(ctx, userID); err != nil {
		return Translate(fmt.Errorf("failed to revoke sessions: %w", err))
	}
	return nil
}

func (a *Account) CreateVerification(ctx context.Context, token, redirectURL string) error {
	if err := checkRedirect(redirectURL); err != nil {
		return err
	}

	account, err := a.Get(ctx, token)
	if err != nil {
		return err
	}

	link, err := a.issueToken(ctx, account, model.TokenPurposeVerification, a.config.VerificationTTL, redirectURL)
	if err != nil {
		return err
	}

	if err := a.mailer.SendVerificationEmail(ctx, account.Email, account.Name, link); err != nil {
		return Translate(fmt.Errorf("failed to send verification email: %w", err))
	}
	return nil
}

func (a *Account) UpdateVerification(ctx context.Context, userID, secret string) error {
	return a.consumeToken(ctx, userID, secret, model.TokenPurposeVerification, func(tx *gorm.DB) error {
		return tx.Model(&model.Account{}).Where("id = ?", userID).Update("email_verified", true).Error
	})
}

// PurgeExpiredTokens deletes recovery and verification tokens that expired
// or were used more than a day ago.
func (a *Account) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	now := time.Now()
	result := a.db.WithContext(ctx).
		Where("expires_at < ? OR (used_at IS NOT NULL AND used_at < ?)", now, now.Add(-24*time.Hour)).
		Delete(&model.AccountToken{})
	if result.Error != nil {
		return 0, Translate(result.Error)
	}
	return result.RowsAffected, nil
}

func (a *Account) issueToken(ctx context.Context, account *model.Account, purpose string, ttl time.Duration, redirectURL string) (string, error) {
	token := &model.AccountToken{
		AccountID: account.ID,
		Purpose:   purpose,
		Secret:    uuid.New().String(),
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := a.db.WithContext(ctx).Create(token).Error; err != nil {
		return "", Translate(err)
	}

	link, _ := url.Parse(redirectURL)
	q := link.Query()
	q.Set("userId", account.ID)
	q.Set("secret", token.Secret)
	link.RawQuery = q.Encode()
	return link.String(), nil
}

// consumeToken checks a single-use secret and runs apply in the same
// transaction that marks it used.
func (a *Account) consumeToken(ctx context.Context, userID, secret, purpose string, apply func(tx *gorm.DB) error) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token model.AccountToken
		err := tx.Where("account_id = ? AND secret = ? AND purpose = ?", userID, secret, purpose).Take(&token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errInvalidToken()
		}
		if err != nil {
			return err
		}
		if token.IsUsed() || token.IsExpired() {
			return errInvalidToken()
		}

		// claim the secret before applying it; a concurrent claim leaves no row to update
		token.MarkAsUsed()
		claim := tx.Model(&model.AccountToken{}).
			Where("id = ? AND used_at IS NULL", token.ID).
			Update("used_at", token.UsedAt)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return errInvalidToken()
		}

		return apply(tx)
	})
	return Translate(err)
}

func checkRedirect(redirectURL string) error {
	u, err := url.Parse(redirectURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return NewError(http.StatusBadRequest, TypeInvalidArgument, "Invalid `url` param: URL must be absolute")
	}
	return nil
}
