package auth

import (
	"net/http"
	"testing"

	"github.com/IBM/go-sdk-core/v5/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewIAM(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name    string
		apiKey  string
		iamURL  string
		wantErr bool
	}{
		{
			name:   "valid API key",
			apiKey: "test-api-key-12345", //nolint:gosec // test value, not a real secret
		},
		{
			name:   "valid API key with custom IAM URL",
			apiKey: "test-api-key-12345", //nolint:gosec // test value, not a real secret
			iamURL: "https://iam.test.cloud.ibm.com",
		},
		{
			name:    "empty API key",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewIAM(tt.apiKey, tt.iamURL, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, core.AUTHTYPE_IAM, a.Kind())
		})
	}
}

func TestNewBearer(t *testing.T) {
	a, err := NewBearer("sk-test", zap.NewNop()) // pragma: allowlist secret
	require.NoError(t, err)
	assert.Equal(t, core.AUTHTYPE_BEARER_TOKEN, a.Kind())

	req, err := http.NewRequest(http.MethodPost, "https://llm.example.internal/v1/chat/completions", nil)
	require.NoError(t, err)
	require.NoError(t, a.Authenticate(req))
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))

	token, err := a.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", token)
	assert.NoError(t, a.ValidateToken())
}

func TestNewBearerEmptyToken(t *testing.T) {
	_, err := NewBearer("", zap.NewNop())
	assert.Error(t, err)
}

func TestAuthenticateNilRequest(t *testing.T) {
	a, err := NewBearer("sk-test", zap.NewNop()) // pragma: allowlist secret
	require.NoError(t, err)
	assert.Error(t, a.Authenticate(nil))
}

func TestIAMAuthenticate(t *testing.T) {
	t.Skip("Skipping test that requires valid IAM credentials")

	a, err := NewIAM("test-api-key", "", zap.NewNop())
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, a.Authenticate(req))
	assert.NotEmpty(t, req.Header.Get("Authorization"))
}
