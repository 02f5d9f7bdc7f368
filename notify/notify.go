package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// header caps the single message each run produces.
const header = "<b>[신규 뉴스 통합 분석 리스트]</b>"

// MessageSender is the slice of the Telegram bot API the notifier needs.
// *tgbotapi.BotAPI satisfies it.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Article is one kept article to include in the message.
type Article struct {
	Title     string
	Summary   string
	Sentiment string
	Link      string
}

// Notifier sends the run report to a Telegram chat.
type Notifier struct {
	sender MessageSender
	chatID int64
}

// NewNotifier creates a Telegram notifier for the given chat.
func NewNotifier(sender MessageSender, chatID int64) *Notifier {
	return &Notifier{sender: sender, chatID: chatID}
}

// Notify assembles all articles into one message and sends it.
func (n *Notifier) Notify(ctx context.Context, articles []Article) error {
	if len(articles) == 0 {
		return nil
	}
	if n.sender == nil {
		return fmt.Errorf("telegram sender not configured")
	}

	msg := tgbotapi.NewMessage(n.chatID, BuildMessage(articles))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// BuildMessage formats all articles under the fixed header.
func BuildMessage(articles []Article) string {
	blocks := make([]string, 0, len(articles))
	for i, a := range articles {
		blocks = append(blocks, formatBlock(i+1, a))
	}
	return header + "\n\n" + strings.Join(blocks, "\n\n")
}

func formatBlock(n int, a Article) string {
	return fmt.Sprintf(
		"%d. %s\n<b>%s</b>\n%s\n<a href=\"%s\">🔗 기사보기</a>",
		n,
		SentimentLabel(a.Sentiment),
		html.EscapeString(a.Title),
		html.EscapeString(a.Summary),
		a.Link,
	)
}

// SentimentLabel maps a classifier sentiment onto its display glyph.
// Anything unrecognized reads as neutral.
func SentimentLabel(sentiment string) string {
	switch sentiment {
	case "POSITIVE":
		return "👍긍정"
	case "NEGATIVE":
		return "👎부정"
	default:
		return "😐중립"
	}
}
