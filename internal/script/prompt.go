package script

import (
	"encoding/json"
	"fmt"
	"strings"

	"marketreel/internal/marketdata"
)

// promptTemplate instructs the model to return a strict JSON content plan.
// {daily_data} is replaced with the formatted snapshot.
const promptTemplate = `You are a financial news editor producing a short narrated market report video.
Given the market data below, write a content plan as a JSON object with this exact shape:

{"title": "...", "scenes": [{"narration": "...", "visual_prompt": "..."}]}

Rules:
- 4 to 8 scenes, each narration one or two spoken sentences covering one topic
  (index moves, breadth, sector leaders, notable flows).
- Consecutive scenes about the same topic may share a visual: leave
  visual_prompt empty to reuse the previous scene's illustration.
- visual_prompt, when present, describes a single still illustration with no
  embedded text.
- Return only the JSON object.

Market data:
{daily_data}
`

// defaultVisualPrompt is used when the first scene arrives without a visual.
const defaultVisualPrompt = "Abstract financial background, calm colors, minimalist style"

// BuildPrompt formats the snapshot into the content-plan prompt.
func BuildPrompt(snapshot *marketdata.Snapshot) (string, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format snapshot: %w", err)
	}
	return strings.Replace(promptTemplate, "{daily_data}", string(data), 1), nil
}
