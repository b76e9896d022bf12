package event

// Type names a lifecycle transition of a credential family.
type Type string

const (
	TypeUserCreated          Type = "user.created"
	TypeUserExpired          Type = "user.expired"
	TypeSecretCreated        Type = "secret.created"
	TypeSecretRotated        Type = "secret.rotated"
	TypeSecretExpired        Type = "secret.expired"
	TypeAccessTokenCreated   Type = "access_token.created"
	TypeAccessTokenRefreshed Type = "access_token.refreshed"
	TypeAccessTokenExpired   Type = "access_token.expired"
)

// Event is published after the transaction that caused it has committed.
// Payloads carry names only, never secret values or token values.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp string         `json:"timestamp"`
	ActorID   string         `json:"actor_id,omitempty"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
