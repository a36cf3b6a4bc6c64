package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"moonpulse/internal/domain"

	tele "gopkg.in/telebot.v3"
)

// Telegram rejects messages above 4096 characters.
const maxMessageRunes = 4000

const usage = "Ask me about crypto social trends, e.g.\n" +
	"/ask BTC social trend over 14 days\n" +
	"/ask top alerts today\n" +
	"/ask project summary for 0x..."

// Asker answers one free-text query.
type Asker interface {
	Ask(ctx context.Context, text string) domain.FinalResponse
}

var newBot = tele.NewBot

// StartTelegramBot starts long polling in the background. It returns nil
// without starting anything when token is empty.
func StartTelegramBot(token string, asker Asker, timeout time.Duration) (*tele.Bot, error) {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil, nil
	}
	b, err := newBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create Telegram bot: %w", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	b.Handle("/start", func(c tele.Context) error {
		return c.Send(usage)
	})
	b.Handle("/ask", func(c tele.Context) error {
		return c.Send(answer(asker, c.Message().Payload, timeout))
	})
	b.Handle(tele.OnText, func(c tele.Context) error {
		return c.Send(answer(asker, c.Text(), timeout))
	})

	log.Println("Telegram bot started")
	go b.Start()
	return b, nil
}

func answer(asker Asker, text string, timeout time.Duration) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return usage
	}
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return FormatReply(asker.Ask(ctx, text))
}

// FormatReply renders an envelope as chat text.
func FormatReply(resp domain.FinalResponse) string {
	if resp.Error != nil {
		return "Sorry, I couldn't answer that: " + resp.Error.Message
	}

	var out string
	switch r := resp.Result.(type) {
	case string:
		out = r
	case json.RawMessage:
		var buf bytes.Buffer
		if err := json.Indent(&buf, r, "", "  "); err != nil {
			out = string(r)
		} else {
			out = buf.String()
		}
	case nil:
		out = "No answer."
	default:
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			out = fmt.Sprint(r)
		} else {
			out = string(b)
		}
	}
	return truncateRunes(out, maxMessageRunes)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "\n..."
}
