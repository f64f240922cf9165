package approval

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const callbackPrefix = "glyphx"

// TelegramProvider asks a single operator chat through an inline keyboard.
type TelegramProvider struct {
	bot    *tgbotapi.BotAPI
	chatID int64

	mu      sync.Mutex
	waiting map[string]chan Answer
}

// NewTelegramProvider connects to the Bot API with token.
func NewTelegramProvider(token string, chatID int64) (*TelegramProvider, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init failed: %w", err)
	}
	slog.Info("telegram confirmation bot connected", "username", bot.Self.UserName)
	return &TelegramProvider{
		bot:     bot,
		chatID:  chatID,
		waiting: make(map[string]chan Answer),
	}, nil
}

// Run receives callback updates until ctx is done. It must be running for
// Confirm to ever see an answer.
func (t *TelegramProvider) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)
	defer t.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.CallbackQuery == nil {
				continue
			}
			t.handleCallback(update.CallbackQuery)
		}
	}
}

func (t *TelegramProvider) handleCallback(q *tgbotapi.CallbackQuery) {
	if q.Message == nil || q.Message.Chat == nil || q.Message.Chat.ID != t.chatID {
		slog.Debug("ignoring confirmation callback from unexpected chat")
		return
	}
	id, answer, ok := parseCallbackData(q.Data)
	if !ok {
		return
	}

	t.mu.Lock()
	ch, found := t.waiting[id]
	delete(t.waiting, id)
	t.mu.Unlock()

	text := "expired"
	if found {
		ch <- answer
		text = string(answer.Verdict)
	}
	if _, err := t.bot.Request(tgbotapi.NewCallback(q.ID, text)); err != nil {
		slog.Warn("telegram callback ack failed", "error", err)
	}
}

func (t *TelegramProvider) Confirm(ctx context.Context, prompt Prompt) (Answer, error) {
	ch := make(chan Answer, 1)
	t.mu.Lock()
	t.waiting[prompt.ID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.waiting, prompt.ID)
		t.mu.Unlock()
	}()

	msg := tgbotapi.NewMessage(t.chatID, renderPromptHTML(prompt))
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = promptKeyboard(prompt.ID)
	if _, err := t.bot.Send(msg); err != nil {
		return Answer{Verdict: VerdictDeny}, fmt.Errorf("send confirmation prompt: %w", err)
	}

	select {
	case <-ctx.Done():
		return Answer{Verdict: VerdictDeny}, ctx.Err()
	case answer := <-ch:
		return answer, nil
	}
}

func renderPromptHTML(prompt Prompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Confirm %s</b>\n", html.EscapeString(prompt.Kind))
	fmt.Fprintf(&b, "<code>%s</code>", html.EscapeString(prompt.Summary))
	if prompt.Reason != "" {
		fmt.Fprintf(&b, "\n<i>%s</i>", html.EscapeString(prompt.Reason))
	}
	return b.String()
}

func promptKeyboard(id string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Allow", callbackData(id, "y")),
			tgbotapi.NewInlineKeyboardButtonData("Always", callbackData(id, "a")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Deny", callbackData(id, "n")),
			tgbotapi.NewInlineKeyboardButtonData("Never", callbackData(id, "d")),
		),
	)
}

func callbackData(id, choice string) string {
	return callbackPrefix + ":" + id + ":" + choice
}

func parseCallbackData(data string) (string, Answer, bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != callbackPrefix || parts[1] == "" {
		return "", Answer{}, false
	}
	switch parts[2] {
	case "y", "a", "n", "d":
	default:
		return "", Answer{}, false
	}
	return parts[1], parseTerminalAnswer(parts[2]), true
}
