package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultHTTPTimeout = 120 * time.Second

// successCode is the business-level success code the synthesis endpoint
// returns for query operations.
const successCode = 3000

// Config captures runtime settings for the narration synthesizer.
type Config struct {
	AppID          string
	AccessToken    string
	Cluster        string
	Endpoint       string
	Voice          string
	Language       string
	SpeedRatio     float64
	TimeoutSeconds int
}

// Timestamp is one spoken unit with millisecond timing, as returned by the
// synthesis frontend.
type Timestamp struct {
	Text    string `json:"text"`
	StartMS int64  `json:"start_time"`
	EndMS   int64  `json:"end_time"`
}

// Result holds the synthesized audio and its word-level timestamps.
type Result struct {
	AudioPath  string
	Timestamps []Timestamp
}

// Client talks to a Volcengine-style TTS endpoint that returns base64 audio
// plus frontend timestamps in one response.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a TTS client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type synthesisRequest struct {
	App struct {
		AppID   string `json:"appid"`
		Token   string `json:"token"`
		Cluster string `json:"cluster"`
	} `json:"app"`
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	Audio struct {
		VoiceType  string  `json:"voice_type"`
		Encoding   string  `json:"encoding"`
		SpeedRatio float64 `json:"speed_ratio"`
		Language   string  `json:"language,omitempty"`
	} `json:"audio"`
	Request struct {
		ReqID        string `json:"reqid"`
		Text         string `json:"text"`
		TextType     string `json:"text_type"`
		Operation    string `json:"operation"`
		WithFrontend int    `json:"with_frontend"`
		FrontendType string `json:"frontend_type"`
	} `json:"request"`
}

type synthesisResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Data     string `json:"data"`
	Addition struct {
		Frontend struct {
			UnitTson []Timestamp `json:"unitTson"`
		} `json:"frontend"`
	} `json:"addition"`
}

// Synthesize produces one continuous audio track for the full narration text,
// writes it to audioPath, and returns the word-level timestamps.
func (c *Client) Synthesize(ctx context.Context, text, audioPath string) (Result, error) {
	var result Result
	if strings.TrimSpace(text) == "" {
		return result, fmt.Errorf("synthesize: narration text required")
	}
	if c.cfg.AccessToken == "" {
		return result, fmt.Errorf("synthesize: access token not configured")
	}

	payload := synthesisRequest{}
	payload.App.AppID = c.cfg.AppID
	payload.App.Token = "access_token"
	payload.App.Cluster = c.cfg.Cluster
	payload.User.UID = c.cfg.AppID
	payload.Audio.VoiceType = c.cfg.Voice
	payload.Audio.Encoding = "mp3"
	payload.Audio.SpeedRatio = c.cfg.SpeedRatio
	payload.Audio.Language = c.cfg.Language
	payload.Request.ReqID = uuid.NewString()
	payload.Request.Text = text
	payload.Request.TextType = "plain"
	payload.Request.Operation = "query"
	payload.Request.WithFrontend = 1
	payload.Request.FrontendType = "unitTson"

	body, err := json.Marshal(payload)
	if err != nil {
		return result, fmt.Errorf("synthesize: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("synthesize: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer;"+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return result, fmt.Errorf("synthesize: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("synthesize: http %d: %s", resp.StatusCode, snippet(raw))
	}

	var parsed synthesisResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return result, fmt.Errorf("synthesize: parse response: %w", err)
	}
	if parsed.Code != successCode {
		return result, fmt.Errorf("synthesize: api code %d: %s", parsed.Code, parsed.Message)
	}
	if parsed.Data == "" {
		return result, fmt.Errorf("synthesize: response carried no audio data")
	}

	audio, err := base64.StdEncoding.DecodeString(parsed.Data)
	if err != nil {
		return result, fmt.Errorf("synthesize: decode audio: %w", err)
	}
	if err := os.WriteFile(audioPath, audio, 0o644); err != nil {
		return result, fmt.Errorf("synthesize: write audio: %w", err)
	}

	result.AudioPath = audioPath
	result.Timestamps = parsed.Addition.Frontend.UnitTson
	return result, nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 256 {
		return s[:256] + "…"
	}
	return s
}
