// Package auth adapts IBM SDK authenticators to outbound HTTP requests.
package auth

import (
	"fmt"
	"net/http"

	"github.com/IBM/go-sdk-core/v5/core"
	"go.uber.org/zap"
)

// Authenticator adds credentials to outbound requests. The log store uses an
// IAM authenticator; the agent runtime uses a static bearer token.
type Authenticator struct {
	authenticator core.Authenticator
	logger        *zap.Logger
}

// NewIAM creates an authenticator that exchanges apiKey for IAM bearer
// tokens, refreshing them as they expire.
func NewIAM(apiKey string, iamURL string, logger *zap.Logger) (*Authenticator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	authenticator := &core.IamAuthenticator{
		ApiKey: apiKey,
	}

	// Production uses the SDK default endpoint.
	if iamURL != "" {
		authenticator.URL = iamURL
		logger.Info("Using custom IAM endpoint", zap.String("iam_url", iamURL))
	}

	if err := authenticator.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate authenticator: %w", err)
	}

	logger.Info("IAM authenticator initialized")

	return &Authenticator{
		authenticator: authenticator,
		logger:        logger,
	}, nil
}

// NewBearer creates an authenticator that sends token unchanged.
func NewBearer(token string, logger *zap.Logger) (*Authenticator, error) {
	authenticator, err := core.NewBearerTokenAuthenticator(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bearer authenticator: %w", err)
	}
	return &Authenticator{
		authenticator: authenticator,
		logger:        logger,
	}, nil
}

// Authenticate adds authentication to an HTTP request
func (a *Authenticator) Authenticate(req *http.Request) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}

	// Token generation and refresh are handled by the SDK.
	if err := a.authenticator.Authenticate(req); err != nil {
		a.logger.Error("Authentication failed", zap.Error(err))
		return fmt.Errorf("authentication failed: %w", err)
	}

	return nil
}

// Kind returns the authenticator type, "iam" or "bearerToken".
func (a *Authenticator) Kind() string {
	return a.authenticator.AuthenticationType()
}

// GetToken retrieves the current bearer token.
func (a *Authenticator) GetToken() (string, error) {
	switch impl := a.authenticator.(type) {
	case *core.IamAuthenticator:
		token, err := impl.GetToken()
		if err != nil {
			return "", fmt.Errorf("failed to get token: %w", err)
		}
		return token, nil
	case *core.BearerTokenAuthenticator:
		return impl.BearerToken, nil
	}
	return "", fmt.Errorf("unsupported authenticator type %q", a.Kind())
}

// ValidateToken validates that we can obtain a valid token
func (a *Authenticator) ValidateToken() error {
	_, err := a.GetToken()
	return err
}
