package model

import "time"

// Projections are the only shapes that leave the service layer. They never
// carry hashes; a plaintext secret value appears once, right after creation.

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type SecretRecord struct {
	Name      string     `json:"name"`
	UserName  string     `json:"user_name"`
	CreatedAt time.Time  `json:"create_ts"`
	ExpiresAt *time.Time `json:"expire_ts,omitempty"`
	Value     string     `json:"value,omitempty"`
}

type AccessTokenRecord struct {
	Value      string    `json:"value"`
	SecretName string    `json:"secret_name"`
	CreatedAt  time.Time `json:"create_ts"`
	ExpiresAt  time.Time `json:"expire_ts"`
}

type RefreshTokenRecord struct {
	Value            string    `json:"value"`
	AccessTokenValue string    `json:"access_token_value"`
	CreatedAt        time.Time `json:"create_ts"`
	ExpiresAt        time.Time `json:"expire_ts"`
}

// UserView is the public or private projection of a user. The public form
// lists no secrets and no tokens.
type UserView struct {
	Visibility    Visibility           `json:"visibility"`
	User          User                 `json:"user"`
	Secrets       []SecretRecord       `json:"secrets,omitempty"`
	AccessTokens  []AccessTokenRecord  `json:"access_tokens,omitempty"`
	RefreshTokens []RefreshTokenRecord `json:"refresh_tokens,omitempty"`
}

type SecretView struct {
	Secret       SecretRecord        `json:"secret"`
	AccessTokens []AccessTokenRecord `json:"access_tokens,omitempty"`
}

type AccessTokenView struct {
	AccessToken   AccessTokenRecord    `json:"access_token"`
	RefreshTokens []RefreshTokenRecord `json:"refresh_tokens,omitempty"`
}

type TokenPair struct {
	AccessToken  AccessTokenRecord  `json:"access_token"`
	RefreshToken RefreshTokenRecord `json:"refresh_token"`
	TokenType    string             `json:"token_type"`
	ExpiresIn    int64              `json:"expires_in"`
}

type CreatedUser struct {
	UserView
	Tokens TokenPair `json:"tokens"`
}

func NewSecretRecord(s Secret, userName string) SecretRecord {
	return SecretRecord{
		Name:      s.Name,
		UserName:  userName,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

func NewAccessTokenRecord(t AccessToken, secretName string) AccessTokenRecord {
	return AccessTokenRecord{
		Value:      t.Value,
		SecretName: secretName,
		CreatedAt:  t.CreatedAt,
		ExpiresAt:  t.ExpiresAt,
	}
}

func NewRefreshTokenRecord(t RefreshToken, accessTokenValue string) RefreshTokenRecord {
	return RefreshTokenRecord{
		Value:            t.Value,
		AccessTokenValue: accessTokenValue,
		CreatedAt:        t.CreatedAt,
		ExpiresAt:        t.ExpiresAt,
	}
}

// NewTokenPair builds the response for a freshly minted pair. expires_in is
// measured from the access token's creation.
func NewTokenPair(access AccessToken, refresh RefreshToken, secretName string) TokenPair {
	return TokenPair{
		AccessToken:  NewAccessTokenRecord(access, secretName),
		RefreshToken: NewRefreshTokenRecord(refresh, access.Value),
		TokenType:    "Bearer",
		ExpiresIn:    int64(access.ExpiresAt.Sub(access.CreatedAt).Seconds()),
	}
}
