package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent    []tgbotapi.MessageConfig
	sendErr error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{MessageID: 1}, nil
}

func sampleArticles() []Article {
	return []Article{
		{
			Title:     "한국투자증권 신규 서비스 출시",
			Summary:   "새로운 자산관리 서비스를 공개했다",
			Sentiment: "POSITIVE",
			Link:      "https://news.example/b",
		},
		{
			Title:     "한국투자증권 전산 장애",
			Summary:   "오전 한때 거래가 중단됐다",
			Sentiment: "NEGATIVE",
			Link:      "https://news.example/c",
		},
	}
}

func TestSentimentLabel(t *testing.T) {
	cases := map[string]string{
		"POSITIVE": "👍긍정",
		"NEGATIVE": "👎부정",
		"NEUTRAL":  "😐중립",
		"":         "😐중립",
		"WEIRD":    "😐중립",
	}
	for in, want := range cases {
		if got := SentimentLabel(in); got != want {
			t.Errorf("SentimentLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage(sampleArticles())

	if !strings.HasPrefix(msg, "<b>[신규 뉴스 통합 분석 리스트]</b>") {
		t.Errorf("message missing header: %q", msg)
	}
	if !strings.Contains(msg, "1. 👍긍정") {
		t.Error("first block missing number and sentiment glyph")
	}
	if !strings.Contains(msg, "2. 👎부정") {
		t.Error("second block missing number and sentiment glyph")
	}
	if !strings.Contains(msg, `<a href="https://news.example/b">🔗 기사보기</a>`) {
		t.Error("message missing article link")
	}
	if !strings.Contains(msg, "새로운 자산관리 서비스를 공개했다") {
		t.Error("message missing summary")
	}
}

func TestBuildMessageEscapesHTML(t *testing.T) {
	msg := BuildMessage([]Article{{
		Title:     `제목에 <태그> & "따옴표"`,
		Summary:   "요약 <b>굵게</b>",
		Sentiment: "NEUTRAL",
		Link:      "https://news.example/x",
	}})

	if strings.Contains(msg, "<태그>") {
		t.Error("title markup not escaped")
	}
	if !strings.Contains(msg, "&lt;태그&gt;") {
		t.Error("escaped title markup missing")
	}
	if strings.Contains(msg, "<b>굵게</b>") {
		t.Error("summary markup not escaped")
	}
}

func TestNotifySendsOneMessage(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, 42)

	if err := n.Notify(context.Background(), sampleArticles()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.ChatID != 42 {
		t.Errorf("ChatID = %d, want 42", msg.ChatID)
	}
	if msg.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("ParseMode = %q, want HTML", msg.ParseMode)
	}
	if !msg.DisableWebPagePreview {
		t.Error("web page preview should be disabled")
	}
}

func TestNotifyEmptyListSendsNothing(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, 42)

	if err := n.Notify(context.Background(), nil); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(sender.sent))
	}
}

func TestNotifySendError(t *testing.T) {
	sender := &fakeSender{sendErr: errors.New("telegram down")}
	n := NewNotifier(sender, 42)

	if err := n.Notify(context.Background(), sampleArticles()); err == nil {
		t.Fatal("expected error when send fails")
	}
}

func TestNotifyNilSender(t *testing.T) {
	n := NewNotifier(nil, 42)
	if err := n.Notify(context.Background(), sampleArticles()); err == nil {
		t.Fatal("expected error with nil sender")
	}
}
