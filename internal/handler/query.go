package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"jarvis/internal/lines"
	"jarvis/internal/memory"
	"jarvis/internal/nlu"
	"jarvis/internal/service"
)

// BuildPrompt assembles the query-service prompt: persona instructions, the
// earlier same-topic exchanges (oldest first), then the user's words.
func BuildPrompt(persona string, prior []memory.Entry, text string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString(" ")
	if len(prior) > 0 {
		parts := make([]string, len(prior))
		for i, e := range prior {
			parts[i] = e.Text
		}
		fmt.Fprintf(&b, "Previous context: %s. ", strings.Join(parts, ", "))
	}
	b.WriteString("User message: ")
	b.WriteString(text)
	return b.String()
}

func (h *Handler) general(ctx context.Context, res nlu.Result) Response {
	persona, fallbacks := lines.DefaultPersona(h.cfg.Persona), lines.DefaultFallbacks
	if res.Mode == nlu.ModePractice {
		persona, fallbacks = lines.PracticePersona(h.cfg.Persona), lines.PracticeFallbacks
	}

	if h.cfg.Query == nil {
		return Response{
			Text: lines.Pick(h.cfg.Picker, fallbacks),
			Note: "Error processing",
			Err:  service.Unavailable("query", errors.New("no query service")),
		}
	}

	prompt := BuildPrompt(persona, h.cfg.Memory.RecentContext(TopicGeneral), res.Text)
	answer, err := h.cfg.Query.Ask(ctx, prompt)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = service.Unavailable("query", errors.New("empty answer"))
	}
	if err != nil {
		return Response{Text: lines.Pick(h.cfg.Picker, fallbacks), Note: "Error processing", Err: err}
	}

	return Response{
		Text:  answer,
		Note:  "Command understood",
		Memos: []Memo{{Topic: TopicGeneral, Text: fmt.Sprintf("User: %s, AI: %s...", res.Text, clip(answer, clipLen))}},
	}
}

const maxPredictions = 3

func (h *Handler) vision(ctx context.Context, image []byte) Response {
	if h.cfg.Vision == nil {
		return Response{Text: lines.VisionUnavailable(), Note: "Error analyzing image", Err: service.Unavailable("vision", errors.New("no vision service"))}
	}

	preds, err := h.cfg.Vision.Classify(ctx, image)
	if err == nil && len(preds) == 0 {
		err = service.Unavailable("vision", errors.New("no predictions"))
	}
	if err != nil {
		return Response{Text: lines.VisionUnavailable(), Note: "Error analyzing image", Err: err}
	}

	text, top := DescribePredictions(preds)
	return Response{
		Text:  text,
		Note:  "Image analyzed",
		Memos: []Memo{{Topic: TopicVision, Text: "Analyzed image: " + top}},
	}
}

// DescribePredictions turns ranked labels into a spoken sentence and returns
// it together with the winning label.
func DescribePredictions(preds []service.Prediction) (string, string) {
	ranked := append([]service.Prediction(nil), preds...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > maxPredictions {
		ranked = ranked[:maxPredictions]
	}

	var b strings.Builder
	b.WriteString(lines.VisionIntro())

	top := strings.ToLower(ranked[0].Label)
	fmt.Fprintf(&b, " I detect this appears to be %s with %d%% confidence.", top, percent(ranked[0].Score))

	if len(ranked) > 1 {
		alts := make([]string, 0, len(ranked)-1)
		for _, p := range ranked[1:] {
			alts = append(alts, fmt.Sprintf("%s (%d%%)", strings.ToLower(p.Label), percent(p.Score)))
		}
		fmt.Fprintf(&b, " Other possibilities include %s.", strings.Join(alts, " and "))
	}
	return b.String(), top
}

func percent(score float64) int {
	return int(math.Round(math.Max(0, math.Min(1, score)) * 100))
}
