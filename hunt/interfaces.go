package hunt

import (
	"context"
	"strings"
)

// MemberDirectory enumerates guild members.
type MemberDirectory interface {
	// MembersWithRoles returns every member holding at least one of roleIDs,
	// in a stable order.
	MembersWithRoles(ctx context.Context, guildID string, roleIDs []string) ([]Candidate, error)
}

// RoleMutator grants and revokes single roles.
type RoleMutator interface {
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
}

// MessagePoster delivers canary messages.
type MessagePoster interface {
	// PostMessage posts as the authenticated account.
	PostMessage(ctx context.Context, channelID, content string) error

	// PostWebhook posts anonymously through an incoming webhook.
	PostWebhook(ctx context.Context, webhookURL, content string) error
}

// ChannelWatcher streams messages created in a channel.
type ChannelWatcher interface {
	Watch(ctx context.Context, channelID string) (Subscription, error)
}

// Platform is everything a hunt session needs from the hosting service.
// Implementations wrap retryable failures with Transient.
type Platform interface {
	MemberDirectory
	RoleMutator
	MessagePoster
	ChannelWatcher

	// Whoami returns the name of the authenticated account.
	Whoami(ctx context.Context) (string, error)
}

// Subscription is a live message stream for one channel.
type Subscription interface {
	// Messages yields messages in arrival order.
	Messages() <-chan Message

	// Done is closed when the stream has failed or was closed.
	Done() <-chan struct{}

	// Err reports why Done was closed; nil after a regular Close.
	Err() error

	Close() error
}

// Message is a message observed on a watched channel.
type Message struct {
	ID        string   `json:"id"`
	ChannelID string   `json:"channel_id"`
	AuthorID  string   `json:"author_id"`
	Content   string   `json:"content"`
	EmbedText []string `json:"embed_text,omitempty"`
}

// Text joins the content with embed titles and descriptions, which is where
// forwarding bots usually put copied text.
func (m Message) Text() string {
	if len(m.EmbedText) == 0 {
		return m.Content
	}
	return m.Content + "\n" + strings.Join(m.EmbedText, "\n")
}
