package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/okhmat/lumen/internal/assets"
	"github.com/okhmat/lumen/internal/chat"
	"github.com/okhmat/lumen/internal/reliability"
)

const (
	buttonAsk      = "Ask a question"
	buttonFact     = "Random fact"
	buttonSettings = "Settings"

	callbackLimitMenu = "settings_limit"
	callbackSetLimit  = "set_limit_"
	callbackClear     = "settings_clear"
	callbackBack      = "settings_back"
	callbackClose     = "settings_close"
)

var historyLimitChoices = []int{4, 8, 12, 16, 20}

// Bot runs the Telegram long-poll loop and routes each update through the
// chat service.
type Bot struct {
	client      *Client
	svc         *chat.Service
	pollTimeout time.Duration
	chunkLimit  int
	pacing      time.Duration
}

func NewBot(client *Client, svc *chat.Service, pollTimeout time.Duration, chunkLimit int, pacing time.Duration) *Bot {
	if chunkLimit <= 0 {
		chunkLimit = MaxMessageRunes
	}
	return &Bot{client: client, svc: svc, pollTimeout: pollTimeout, chunkLimit: chunkLimit, pacing: pacing}
}

// Run long-polls getUpdates until ctx is cancelled. Updates are handled
// concurrently, one goroutine per update; ordering within a chat is enforced
// by the per-category cooldowns, not here.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64
	attempt := 0
	for {
		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !reliability.IsRetryableHTTPStatus(statusErr.Code) {
				return fmt.Errorf("telegram long poll rejected: %w", err)
			}
			wait := reliability.ExponentialBackoff(attempt, time.Second, 30*time.Second)
			attempt++
			log.Printf("telegram: getUpdates failed (attempt %d, retrying in %s): %v", attempt, wait, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		attempt = 0

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			go b.handleUpdate(ctx, u)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, u Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID
	userID := chatID
	if msg.From != nil {
		userID = msg.From.ID
	}

	switch {
	case msg.Text == "/start":
		b.handleStart(ctx, chatID, userID, msg.From)
	case msg.Text == "/help":
		b.send(ctx, chatID, helpText)
	case msg.Text == "/settings" || msg.Text == buttonSettings:
		b.openSettings(ctx, chatID, userID)
	case msg.Text == buttonAsk:
		b.send(ctx, chatID, "Go ahead, just type your question.")
	case msg.Text == buttonFact:
		b.handleFact(ctx, chatID, userID)
	case msg.Photo != nil:
		b.handleMedia(ctx, chatID, userID, assets.KindPhoto, largestPhoto(msg.Photo), msg.Caption)
	case msg.Voice != nil:
		b.handleMedia(ctx, chatID, userID, assets.KindVoice, fileRef{msg.Voice.FileID, msg.Voice.FileSize}, "")
	case msg.VideoNote != nil:
		b.handleMedia(ctx, chatID, userID, assets.KindVideo, fileRef{msg.VideoNote.FileID, msg.VideoNote.FileSize}, "")
	case msg.Video != nil:
		b.send(ctx, chatID, "I can only watch round video notes for now, not regular video files.")
	case msg.Text != "":
		b.handleText(ctx, chatID, userID, msg.Text)
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID, userID int64, from *User) {
	if err := b.svc.ClearHistory(ctx, userID); err != nil {
		log.Printf("telegram: clear history for %d: %v", userID, err)
	}
	name := "there"
	if from != nil && from.FirstName != "" {
		name = from.FirstName
	}
	greeting := fmt.Sprintf(
		"Hi %s! I'm Lumen. Send me text, a photo, a voice message or a video note and I'll answer. Try the buttons below to get going.",
		name,
	)
	if err := b.client.SendMessageWithMarkup(ctx, chatID, greeting, mainKeyboard()); err != nil {
		log.Printf("telegram: send greeting to %d: %v", chatID, err)
	}
}

func (b *Bot) handleText(ctx context.Context, chatID, userID int64, text string) {
	b.hint(ctx, chatID, "typing")
	reply, err := b.svc.Respond(ctx, chat.Incoming{UserID: userID, Text: text})
	b.reply(ctx, chatID, reply, err)
}

func (b *Bot) handleFact(ctx context.Context, chatID, userID int64) {
	b.hint(ctx, chatID, "typing")
	reply, err := b.svc.Fact(ctx, userID)
	b.reply(ctx, chatID, reply, err)
}

type fileRef struct {
	id   string
	size int64
}

func largestPhoto(sizes []PhotoSize) fileRef {
	best := fileRef{}
	area := -1
	for _, s := range sizes {
		if a := s.Width * s.Height; a > area {
			area = a
			best = fileRef{s.FileID, s.FileSize}
		}
	}
	return best
}

func (b *Bot) handleMedia(ctx context.Context, chatID, userID int64, kind assets.Kind, ref fileRef, caption string) {
	b.hint(ctx, chatID, "typing")
	reply, err := b.svc.Respond(ctx, chat.Incoming{
		UserID: userID,
		Text:   caption,
		Media: &chat.IncomingMedia{
			Kind:         kind,
			DeclaredSize: ref.size,
			Download: func(ctx context.Context, path string) error {
				return b.client.DownloadFile(ctx, ref.id, path)
			},
		},
	})
	b.reply(ctx, chatID, reply, err)
}

func (b *Bot) handleCallback(ctx context.Context, cb *CallbackQuery) {
	if err := b.client.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		log.Printf("telegram: answer callback %s: %v", cb.ID, err)
	}
	if cb.Message == nil || cb.From == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	userID := cb.From.ID

	if !b.svc.AdmitSettings(userID) {
		return
	}

	switch {
	case cb.Data == callbackLimitMenu:
		b.edit(ctx, chatID, messageID, "How many turns should I remember?", limitKeyboard())
	case strings.HasPrefix(cb.Data, callbackSetLimit):
		n, err := strconv.Atoi(strings.TrimPrefix(cb.Data, callbackSetLimit))
		if err != nil {
			return
		}
		if err := b.svc.SetHistoryLimit(ctx, userID, n); err != nil {
			log.Printf("telegram: set history limit for %d: %v", userID, err)
			b.edit(ctx, chatID, messageID, "Couldn't save that, sorry. Try again.", settingsKeyboard())
			return
		}
		b.edit(ctx, chatID, messageID, fmt.Sprintf("Done. I'll keep the last %d turns in mind.", n), settingsKeyboard())
	case cb.Data == callbackClear:
		if err := b.svc.ClearHistory(ctx, userID); err != nil {
			log.Printf("telegram: clear history for %d: %v", userID, err)
			b.edit(ctx, chatID, messageID, "Couldn't clear the history, sorry.", settingsKeyboard())
			return
		}
		b.edit(ctx, chatID, messageID, "History cleared. Fresh start!", settingsKeyboard())
	case cb.Data == callbackBack:
		b.editSettingsRoot(ctx, chatID, messageID, userID)
	case cb.Data == callbackClose:
		if err := b.client.DeleteMessage(ctx, chatID, messageID); err != nil {
			log.Printf("telegram: delete settings message: %v", err)
		}
	}
}

func (b *Bot) openSettings(ctx context.Context, chatID, userID int64) {
	if !b.svc.AdmitSettings(userID) {
		return
	}
	limit, err := b.svc.HistoryLimit(ctx, userID)
	if err != nil {
		log.Printf("telegram: read history limit for %d: %v", userID, err)
	}
	text := fmt.Sprintf("Settings\n\nI currently remember your last %d turns.", limit)
	if err := b.client.SendMessageWithMarkup(ctx, chatID, text, settingsKeyboard()); err != nil {
		log.Printf("telegram: open settings for %d: %v", chatID, err)
	}
}

func (b *Bot) edit(ctx context.Context, chatID, messageID int64, text string, markup *InlineKeyboardMarkup) {
	if err := b.client.EditMessageText(ctx, chatID, messageID, text, markup); err != nil {
		log.Printf("telegram: edit message %d in %d: %v", messageID, chatID, err)
	}
}

func (b *Bot) editSettingsRoot(ctx context.Context, chatID, messageID, userID int64) {
	limit, err := b.svc.HistoryLimit(ctx, userID)
	if err != nil {
		log.Printf("telegram: read history limit for %d: %v", userID, err)
	}
	text := fmt.Sprintf("Settings\n\nI currently remember your last %d turns.", limit)
	b.edit(ctx, chatID, messageID, text, settingsKeyboard())
}

func (b *Bot) reply(ctx context.Context, chatID int64, reply string, err error) {
	if err != nil {
		log.Printf("telegram: request for chat %d failed: %v", chatID, err)
		b.send(ctx, chatID, chat.UserMessage(err))
		return
	}
	b.sendLong(ctx, chatID, reply)
}

// sendLong splits a long reply and paces the chunks so Telegram keeps them
// in order and under its flood limits.
func (b *Bot) sendLong(ctx context.Context, chatID int64, text string) {
	chunks := SplitMessage(text, b.chunkLimit)
	for i, chunk := range chunks {
		if i > 0 && b.pacing > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.pacing):
			}
		}
		b.send(ctx, chatID, chunk)
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if err := b.client.SendMessage(ctx, chatID, text); err != nil {
		log.Printf("telegram: send to %d: %v", chatID, err)
	}
}

func (b *Bot) hint(ctx context.Context, chatID int64, action string) {
	if err := b.client.SendChatAction(ctx, chatID, action); err != nil {
		log.Printf("telegram: chat action for %d: %v", chatID, err)
	}
}

func mainKeyboard() ReplyKeyboardMarkup {
	return ReplyKeyboardMarkup{
		Keyboard: [][]KeyboardButton{
			{{Text: buttonAsk}, {Text: buttonFact}},
			{{Text: buttonSettings}},
		},
		ResizeKeyboard: true,
	}
}

func settingsKeyboard() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			{{Text: "History length", CallbackData: callbackLimitMenu}},
			{{Text: "Clear history", CallbackData: callbackClear}},
			{{Text: "Close", CallbackData: callbackClose}},
		},
	}
}

func limitKeyboard() *InlineKeyboardMarkup {
	row := make([]InlineKeyboardButton, 0, len(historyLimitChoices))
	for _, n := range historyLimitChoices {
		row = append(row, InlineKeyboardButton{
			Text:         strconv.Itoa(n),
			CallbackData: callbackSetLimit + strconv.Itoa(n),
		})
	}
	return &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			row,
			{{Text: "Back", CallbackData: callbackBack}},
		},
	}
}

const helpText = `Here's what I can do:

/start - restart our conversation from scratch
/help - show this message
/settings - history length, clear history

Or just send me something:
- a text message and I'll answer it
- a photo and I'll describe it (add a caption to ask about it)
- a voice message and I'll transcribe and answer it
- a round video note and I'll tell you what's in it

The "Random fact" button gets you one surprising true fact.`
