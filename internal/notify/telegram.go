package notify

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/untiswatch/untiswatch/internal/config"
)

// telegramSender is the slice of *tele.Bot the engine uses. Narrowed to an
// interface so tests can stub delivery.
type telegramSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// telegramBot returns a sender for the target's token, creating and caching
// the bot on first use. Creation validates the token against the Telegram API,
// so it is deferred to delivery time instead of failing startup.
func (e *Engine) telegramBot(t config.Target) (telegramSender, error) {
	tok := t.Token()
	if tok == "" {
		return nil, fmt.Errorf("bot token is empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bots == nil {
		e.bots = make(map[string]telegramSender)
	}
	if b, ok := e.bots[tok]; ok {
		return b, nil
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  tok,
		Client: e.client,
	})
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	e.bots[tok] = b
	return b, nil
}

func (e *Engine) sendTelegram(t config.Target, n Notification) error {
	bot, err := e.telegramBot(t)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("*%s*\n%s\n\n_%s_",
		title(n),
		strings.Join(n.Changes, "\n"),
		n.FetchedAt.Local().Format(time.RFC1123),
	)
	_, err = bot.Send(tele.ChatID(t.ChatID), text, &tele.SendOptions{
		ParseMode: tele.ModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
