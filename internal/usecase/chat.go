package usecase

import (
	"context"
	"regexp"
	"strings"

	"WhyAgent/internal/domain/models"
)

// NoTickerAnswer is the chat reply when no ticker can be found.
const NoTickerAnswer = "질문에 종목 티커가 없습니다. 예: 'AAPL이 왜 이렇게 예측돼?'"

var tickerRe = regexp.MustCompile(`\b([A-Z]{1,5}(?:\.[A-Z]{1,2})?)\b`)

// Words that match the ticker pattern once a message is upper-cased.
var tickerStopWords = map[string]struct{}{
	"A": {}, "I": {}, "AN": {}, "THE": {}, "AND": {}, "OR": {}, "IS": {}, "IT": {}, "TO": {},
	"OF": {}, "IN": {}, "ON": {}, "FOR": {}, "WHY": {}, "WHAT": {}, "HOW": {}, "DOES": {},
	"DO": {}, "WILL": {}, "BE": {}, "SO": {}, "THIS": {}, "THAT": {}, "ME": {}, "MY": {},
	"UP": {}, "DOWN": {}, "STOCK": {}, "PRICE": {}, "TODAY": {}, "ABOUT": {}, "THINK": {},
	"CAN": {}, "YOU": {}, "WITH": {}, "AT": {}, "BY": {}, "AS": {}, "ARE": {}, "WAS": {},
	"NOT": {}, "BUY": {}, "SELL": {}, "NEWS": {}, "NEXT": {}, "WEEK": {}, "DROP": {}, "RISE": {},
}

// GuessTicker finds a ticker in a chat message. Upper-case symbols as written
// win; otherwise the upper-cased message is searched, skipping common words.
func GuessTicker(msg string) string {
	if t := firstTicker(msg); t != "" {
		return t
	}
	return firstTicker(strings.ToUpper(msg))
}

func firstTicker(s string) string {
	for _, m := range tickerRe.FindAllStringSubmatch(s, -1) {
		if _, stop := tickerStopWords[m[1]]; !stop {
			return m[1]
		}
	}
	return ""
}

// Chat answers free-form questions about a ticker's forecast.
type Chat struct {
	explain *ExplainService
}

func NewChat(explain *ExplainService) *Chat {
	return &Chat{explain: explain}
}

// Answer resolves the ticker and explains its forecast. A message without a
// ticker is answered with ok=false and no error.
func (c *Chat) Answer(ctx context.Context, message, ticker string) (*models.ChatAnswer, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		ticker = GuessTicker(message)
	}
	if ticker == "" {
		return &models.ChatAnswer{OK: false, Answer: NoTickerAnswer}, nil
	}

	ex, err := c.explain.Explain(ctx, ExplainInput{Ticker: ticker, TopK: DefaultTopK})
	if err != nil {
		return nil, err
	}
	return &models.ChatAnswer{OK: true, Explanation: ex}, nil
}
