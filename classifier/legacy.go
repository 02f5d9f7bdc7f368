package classifier

import (
	"fmt"
	"strings"
)

// legacySeparator splits per-article answers in the free-text protocol.
const legacySeparator = "###"

// legacyMissing stands in when the model returns fewer segments than
// articles. It contains the PASS marker so the post-filter discards the
// article instead of the run failing.
const legacyMissing = "PASS (요약 생성 누락)"

func buildLegacyPrompt(items []Item) string {
	var sb strings.Builder
	for i, item := range items {
		fmt.Fprintf(&sb, "[%d] 제목: %s\n내용: %s\n\n", i+1, item.Title, item.Content)
	}

	return fmt.Sprintf(`당신은 금융 분석 전문가입니다. 다음 %d개의 뉴스를 각각 분석하여
형식에 맞춰 [긍정/부정/중립] 여부와 한줄 요약을 작성하세요.
목표주가, 투자의견 등 기계적인 시황 기사는 "PASS"라고만 답하세요.
각 분석 결과 사이에는 '%s' 구분자를 넣어주세요.

%s`, len(items), legacySeparator, sb.String())
}

// parseLegacyResponse splits the free text on the separator and pairs
// segment i with item i. The model reordering or dropping segments
// silently misaligns results; that is a known limit of this protocol and
// the reason the structured protocol is the default.
func parseLegacyResponse(text string, items []Item) []Verdict {
	segments := strings.Split(text, legacySeparator)

	verdicts := make([]Verdict, len(items))
	for i, item := range items {
		summary := legacyMissing
		if i < len(segments) {
			if s := strings.TrimSpace(segments[i]); s != "" {
				summary = s
			}
		}

		verdicts[i] = Verdict{
			ID:        item.ID,
			Status:    legacyStatus(summary),
			Sentiment: legacySentiment(summary),
			Summary:   summary,
		}
	}
	return verdicts
}

// legacyStatus detects the PASS marker anywhere in the free text,
// case-insensitively, so "pass", "Pass" and "[PASS]" all count.
func legacyStatus(text string) string {
	if strings.Contains(strings.ToUpper(text), StatusPass) {
		return StatusPass
	}
	return StatusKeep
}

// legacySentiment maps the Korean sentiment words of the old prompt onto
// the three-way vocabulary. Anything unrecognized reads as neutral.
func legacySentiment(text string) string {
	switch {
	case strings.Contains(text, "긍정"):
		return SentimentPositive
	case strings.Contains(text, "부정"):
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
