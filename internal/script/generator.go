package script

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"marketreel/internal/logging"
	"marketreel/internal/marketdata"
	"marketreel/internal/services"
)

// Completer is the narrow LLM contract the generator depends on.
type Completer interface {
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

// Generator turns a market snapshot into a validated script.
type Generator struct {
	client Completer
	logger *slog.Logger
}

// NewGenerator constructs a script generator.
func NewGenerator(client Completer, logger *slog.Logger) *Generator {
	return &Generator{
		client: client,
		logger: logging.NewComponentLogger(logger, "script-generator"),
	}
}

type planScene struct {
	Narration    string `json:"narration"`
	VisualPrompt string `json:"visual_prompt"`
}

type contentPlan struct {
	Title  string      `json:"title"`
	Scenes []planScene `json:"scenes"`
}

// Generate calls the script source and maps its content plan onto the segment
// model: each scene becomes one segment, and consecutive scenes without a new
// visual prompt share the previous scene's topic.
func (g *Generator) Generate(ctx context.Context, snapshot *marketdata.Snapshot) (*Script, error) {
	prompt, err := BuildPrompt(snapshot)
	if err != nil {
		return nil, services.Wrap(services.ErrGeneration, "scripting", "build prompt", "", err)
	}

	logger := logging.WithContext(ctx, g.logger)
	logger.Info("requesting content plan", logging.String("trade_date", snapshot.TradeDate))

	content, err := g.client.CompleteJSON(ctx, prompt)
	if err != nil {
		return nil, services.Wrap(services.ErrGeneration, "scripting", "request content plan", "", err)
	}

	var plan contentPlan
	if err := json.Unmarshal([]byte(content), &plan); err != nil {
		return nil, services.Wrap(services.ErrGeneration, "scripting", "parse content plan",
			"model response was not the required JSON object", err)
	}
	if len(plan.Scenes) == 0 {
		return nil, services.Wrap(services.ErrGeneration, "scripting", "parse content plan",
			"content plan contained no scenes", nil)
	}

	result := &Script{
		Title:     strings.TrimSpace(plan.Title),
		TradeDate: snapshot.TradeDate,
		Session:   snapshot.Session,
	}
	if result.Title == "" {
		result.Title = fallbackTitle(snapshot)
	}

	topicIndex := 0
	currentTopic := ""
	for i, scene := range plan.Scenes {
		narration := strings.TrimSpace(scene.Narration)
		if narration == "" {
			return nil, services.Wrap(services.ErrGeneration, "scripting", "parse content plan",
				fmt.Sprintf("scene %d has empty narration", i), nil)
		}
		visual := strings.TrimSpace(scene.VisualPrompt)
		if visual != "" || currentTopic == "" {
			if visual == "" {
				visual = defaultVisualPrompt
			}
			topicIndex++
			currentTopic = fmt.Sprintf("topic-%02d", topicIndex)
			result.Topics = append(result.Topics, Topic{ID: currentTopic, VisualPrompt: visual})
		}
		result.Segments = append(result.Segments, Segment{
			Text:    narration,
			TopicID: currentTopic,
			Ordinal: i,
		})
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}
	logger.Info("content plan accepted",
		logging.Int("segments", len(result.Segments)),
		logging.Int("topics", len(result.Topics)),
	)
	return result, nil
}

func fallbackTitle(snapshot *marketdata.Snapshot) string {
	caser := cases.Title(language.English)
	label := strings.TrimSpace(snapshot.Session)
	if label == "" {
		label = "daily"
	}
	return caser.String(fmt.Sprintf("market report %s %s", snapshot.TradeDate, label))
}
