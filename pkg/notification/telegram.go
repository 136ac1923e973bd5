// Package notification delivers engine events to users and formats
// trigger and digest messages.
package notification

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	tb "gopkg.in/tucnak/telebot.v2"
)

// Telegram implements the core.Notifier interface over a telegram bot.
// Messages are broadcast to every configured user.
type Telegram struct {
	client *tb.Bot
	users  []int64
}

// NewTelegram creates and initializes a new Telegram notifier
func NewTelegram(token string, users []int64) (*Telegram, error) {
	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     token,
		Poller:    &tb.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{
		client: client,
		users:  users,
	}, nil
}

// Notify sends a message to all configured users
func (t *Telegram) Notify(text string) {
	for _, user := range t.users {
		_, err := t.client.Send(&tb.User{ID: user}, text)
		if err != nil {
			log.WithError(err).Error("failed to send notification")
		}
	}
}

// NotifyUser sends a message to a single user
func (t *Telegram) NotifyUser(user int64, text string) {
	_, err := t.client.Send(&tb.User{ID: user}, text)
	if err != nil {
		log.WithError(err).Error("failed to send notification")
	}
}

// OnError reports an engine error to all configured users
func (t *Telegram) OnError(err error) {
	t.Notify(fmt.Sprintf("🛑 ERROR\n%s", err))
}
