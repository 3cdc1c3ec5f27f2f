package llm

import (
	"math"
	"strconv"
	"strings"
	"time"

	"WhyAgent/internal/domain/models"
)

// PromptInput carries everything the explanation prompt shows.
type PromptInput struct {
	Ticker      string
	TargetDate  time.Time
	PredPct     float64
	TopFeatures []models.FeatureImportance
	NewsBullets []string
}

type promptText struct {
	summary      string
	ticker       string
	target       string
	predicted    string
	importance   string
	noImportance string
	news         string
	noNews       string
	instructHead string
	instructions []string
	answerIn     string
}

var templates = map[string]promptText{
	"korean": {
		summary:      "[예측 요약]",
		ticker:       "- 종목: ",
		target:       "- 대상일: ",
		predicted:    "- 예측 변동률(%): ",
		importance:   "[모델 피처 중요도 Top-K]",
		noImportance: "- (중요도 없음)",
		news:         "[관련 기사 목록(최근)]",
		noNews:       "- (관련 기사 부족)",
		instructHead: "[지시]",
		instructions: []string{
			"1) 위 정보를 근거로 예측(상승/하락)의 타당성을 3~5개 포인트로 설명하라.",
			`2) "정합성"을 높음/보통/낮음 중 하나로 평가하라.`,
			"3) 마지막에 위험요인(리스크) 1~2개를 제시하라.",
		},
		answerIn: "한국어로 간결하게.",
	},
	"english": {
		summary:      "[Prediction summary]",
		ticker:       "- Ticker: ",
		target:       "- Target date: ",
		predicted:    "- Predicted change (%): ",
		importance:   "[Model feature importance Top-K]",
		noImportance: "- (no importances)",
		news:         "[Related articles (recent)]",
		noNews:       "- (no related articles)",
		instructHead: "[Instructions]",
		instructions: []string{
			"1) Using the information above, explain in 3 to 5 points whether the predicted direction (up/down) is plausible.",
			`2) Rate the "consistency" as one of high / medium / low.`,
			"3) Finish with 1 or 2 risk factors.",
		},
		answerIn: "Answer concisely in English.",
	},
}

// BuildPrompt renders the explanation prompt in the given language. Languages
// without a template get the English wording and an explicit answer-language line.
func BuildPrompt(in PromptInput, language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		lang = "korean"
	}
	t, ok := templates[lang]
	if !ok {
		t = templates["english"]
		t.answerIn = "Answer concisely in " + strings.TrimSpace(language) + "."
	}

	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line("")
	line(t.summary)
	line(t.ticker + in.Ticker)
	line(t.target + in.TargetDate.Format("2006-01-02"))
	line(t.predicted + formatRounded(in.PredPct*100, 2))
	line("")

	line(t.importance)
	if len(in.TopFeatures) == 0 {
		line(t.noImportance)
	}
	for _, f := range in.TopFeatures {
		line("- " + f.Feature + ": " + formatRounded(f.Importance, 4))
	}
	line("")

	line(t.news)
	if len(in.NewsBullets) == 0 {
		line(t.noNews)
	}
	for _, n := range in.NewsBullets {
		line(n)
	}
	line("")

	line(t.instructHead)
	for _, s := range t.instructions {
		line(s)
	}
	line(t.answerIn)
	return b.String()
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func formatRounded(v float64, places int) string {
	return strconv.FormatFloat(Round(v, places), 'f', -1, 64)
}
