package casdoor

import (
	"context"
	"fmt"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AccountManager covers the write side of the identity provider: account
// creation during registration, password resets, and session revocation.
type AccountManager struct {
	client *casdoorsdk.Client
	redis  *redis.Client
	config CasdoorConfig
}

func NewAccountManager(config CasdoorConfig, redisClient *redis.Client) *AccountManager {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)

	return &AccountManager{
		client: client,
		redis:  redisClient,
		config: config,
	}
}

// CreateAccount registers a provider account. Either email or phone may be
// empty, not both.
func (m *AccountManager) CreateAccount(ctx context.Context, fullName, email, phone, password string) (string, error) {
	id := uuid.New().String()

	user := &casdoorsdk.User{
		Owner:             m.config.OrganizationName,
		Name:              id,
		Id:                id,
		DisplayName:       fullName,
		Email:             email,
		Phone:             phone,
		Password:          password,
		CreatedTime:       time.Now().UTC().Format(time.RFC3339),
		SignupApplication: m.config.ApplicationName,
	}

	ok, err := m.client.AddUser(user)
	if err != nil {
		return "", fmt.Errorf("failed to create provider account: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("provider rejected account creation")
	}

	return id, nil
}

// SetPassword resets an account password through the provider.
func (m *AccountManager) SetPassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	ok, err := m.client.SetPassword(m.config.OrganizationName, userID, oldPassword, newPassword)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	if !ok {
		return fmt.Errorf("provider rejected password change")
	}
	return nil
}

const revokedPrefix = "revoked:"

// RevokeSessions marks every session of the user as revoked. Tokens stay
// valid cryptographically, so the auth middleware consults this denylist.
func (m *AccountManager) RevokeSessions(ctx context.Context, userID string, ttl time.Duration) error {
	if m.redis == nil {
		return nil
	}
	return m.redis.Set(ctx, revokedPrefix+userID, "1", ttl).Err()
}

// IsRevoked reports whether the user's sessions have been revoked.
func (m *AccountManager) IsRevoked(ctx context.Context, userID string) (bool, error) {
	if m.redis == nil {
		return false, nil
	}
	n, err := m.redis.Exists(ctx, revokedPrefix+userID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearRevocation lifts a revocation after a successful fresh login.
func (m *AccountManager) ClearRevocation(ctx context.Context, userID string) error {
	if m.redis == nil {
		return nil
	}
	return m.redis.Del(ctx, revokedPrefix+userID).Err()
}
