package discord

import (
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/flashbots/leakhunt/hunt"
)

var errGatewayDisconnected = errors.New("gateway disconnected")

// subscription forwards MessageCreate events of one channel. A gateway
// disconnect ends it, since messages sent while reconnecting are lost.
type subscription struct {
	channelID string
	ch        chan hunt.Message
	done      chan struct{}

	once    sync.Once
	mu      sync.Mutex
	err     error
	removes []func()
}

func newSubscription(channelID string) *subscription {
	return &subscription{
		channelID: channelID,
		ch:        make(chan hunt.Message, 256),
		done:      make(chan struct{}),
	}
}

func (s *subscription) Messages() <-chan hunt.Message { return s.ch }
func (s *subscription) Done() <-chan struct{}         { return s.done }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.end(nil)
	return nil
}

func (s *subscription) end(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		removes := s.removes
		s.removes = nil
		s.mu.Unlock()

		for _, remove := range removes {
			remove()
		}
		close(s.done)
	})
}

func (s *subscription) attach(sess *discordgo.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removes = append(s.removes,
		sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) { s.onMessage(m) }),
		sess.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) { s.end(errGatewayDisconnected) }),
	)
}

func (s *subscription) onMessage(m *discordgo.MessageCreate) {
	if m.Message == nil || m.ChannelID != s.channelID {
		return
	}
	select {
	case <-s.done:
	case s.ch <- toMessage(m.Message):
	default:
		// consumer stalled, drop
	}
}

func toMessage(m *discordgo.Message) hunt.Message {
	msg := hunt.Message{ID: m.ID, ChannelID: m.ChannelID, Content: m.Content}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		if e.Title != "" {
			msg.EmbedText = append(msg.EmbedText, e.Title)
		}
		if e.Description != "" {
			msg.EmbedText = append(msg.EmbedText, e.Description)
		}
	}
	return msg
}
