package google

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testClientSecret = `{
	"installed": {
		"client_id": "client-id.apps.googleusercontent.com",
		"client_secret": "shhh",
		"auth_uri": "https://accounts.google.com/o/oauth2/auth",
		"token_uri": "https://oauth2.googleapis.com/token",
		"redirect_uris": ["http://localhost"]
	}
}`

type fakeTokenStore struct {
	secret   json.RawMessage
	token    *oauth2.Token
	setCalls int
}

func (s *fakeTokenStore) Secret() json.RawMessage { return s.secret }
func (s *fakeTokenStore) Token() *oauth2.Token    { return s.token }
func (s *fakeTokenStore) SetToken(tok *oauth2.Token) error {
	s.token = tok
	s.setCalls++
	return nil
}

func TestNewAuthorizerRequiresSecret(t *testing.T) {
	_, err := NewAuthorizer(AuthConfig{Store: &fakeTokenStore{}, Logger: testLogger()})
	assert.ErrorIs(t, err, ErrNoClientSecret)
}

func TestNewAuthorizerParsesSecret(t *testing.T) {
	a, err := NewAuthorizer(AuthConfig{
		Store:  &fakeTokenStore{secret: json.RawMessage(testClientSecret)},
		Logger: testLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, "client-id.apps.googleusercontent.com", a.oauth.ClientID)
	assert.Equal(t, DefaultScopes, a.oauth.Scopes)
}

func TestNewAuthorizerRejectsMalformedSecret(t *testing.T) {
	_, err := NewAuthorizer(AuthConfig{
		Store:  &fakeTokenStore{secret: json.RawMessage(`{"web": 12}`)},
		Logger: testLogger(),
	})
	assert.Error(t, err)
}

type staticSource struct {
	tokens []*oauth2.Token
	i      int
}

func (s *staticSource) Token() (*oauth2.Token, error) {
	tok := s.tokens[s.i]
	if s.i < len(s.tokens)-1 {
		s.i++
	}
	return tok, nil
}

func TestPersistingTokenSourceSavesRefreshedTokens(t *testing.T) {
	store := &fakeTokenStore{}
	src := &persistingTokenSource{
		src: &staticSource{tokens: []*oauth2.Token{
			{AccessToken: "first"},
			{AccessToken: "second"},
			{AccessToken: "second"},
		}},
		store: store,
		last:  "first",
	}

	// Unchanged token: nothing persisted.
	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "first", tok.AccessToken)
	assert.Equal(t, 0, store.setCalls)

	// Refresh produced a new token: persisted once.
	tok, err = src.Token()
	require.NoError(t, err)
	assert.Equal(t, "second", tok.AccessToken)
	assert.Equal(t, 1, store.setCalls)

	_, err = src.Token()
	require.NoError(t, err)
	assert.Equal(t, 1, store.setCalls)
}
