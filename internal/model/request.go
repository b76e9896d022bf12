package model

// Wire requests. Lifetimes are integer seconds and expiry instants are
// integer epoch seconds; absent fields decode as zero or nil.

type CreateUserRequest struct {
	Name                 string `json:"name"`
	Secret               string `json:"secret"`
	AccessTokenLifetime  int64  `json:"access_token_lifetime"`
	RefreshTokenLifetime int64  `json:"refresh_token_lifetime"`
}

type UpdateUserRequest struct {
	ExpireTS *int64 `json:"expire_ts"`
}

type CreateSecretRequest struct {
	ExpireTS *int64 `json:"expire_ts"`
}

type UpdateSecretRequest struct {
	Value    *string `json:"value"`
	ExpireTS *int64  `json:"expire_ts"`
}

type TokenLifetimeRequest struct {
	AccessTokenLifetime  int64 `json:"access_token_lifetime"`
	RefreshTokenLifetime int64 `json:"refresh_token_lifetime"`
}
