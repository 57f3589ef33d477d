package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// Content formats handled by the content generator.
const (
	FormatSocial      = "social"
	FormatVideoScript = "video_script"
)

// PlatformSpec describes the constraints of a social platform.
type PlatformSpec struct {
	MaxLength int
	Hashtags  bool
	Tone      string
}

var platformSpecs = map[string]PlatformSpec{
	"twitter":   {MaxLength: 280, Hashtags: true, Tone: "concise"},
	"linkedin":  {MaxLength: 1300, Hashtags: true, Tone: "professional"},
	"instagram": {MaxLength: 2200, Hashtags: true, Tone: "visual"},
	"facebook":  {MaxLength: 500, Hashtags: false, Tone: "conversational"},
	"tiktok":    {MaxLength: 300, Hashtags: true, Tone: "trendy"},
}

// SpecForPlatform returns the platform's constraints. Unknown platforms get LinkedIn's.
func SpecForPlatform(platform string) PlatformSpec {
	if spec, ok := platformSpecs[strings.ToLower(strings.TrimSpace(platform))]; ok {
		return spec
	}
	return platformSpecs["linkedin"]
}

// ContentPayload is the input for a content_generator task.
type ContentPayload struct {
	Format     string `json:"format"`
	Platform   string `json:"platform,omitempty"`
	Topic      string `json:"topic"`
	BrandVoice string `json:"brand_voice,omitempty"`
	VideoType  string `json:"video_type,omitempty"`
	// Duration is the video length in minutes.
	Duration int `json:"duration,omitempty"`
}

// ContentGenerator writes social posts and video scripts.
type ContentGenerator struct{ base }

// NewContentGenerator returns a content_generator invoker.
func NewContentGenerator(c Completer, opts ...Option) *ContentGenerator {
	return &ContentGenerator{base: newBase(models.KindContentGenerator, c, opts)}
}

// Run implements Invoker.
func (a *ContentGenerator) Run(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p ContentPayload
	if err := decodePayload(a.kind, payload, &p); err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(p.Format)) {
	case "", FormatSocial:
		return a.social(ctx, p)
	case FormatVideoScript:
		return a.videoScript(ctx, p)
	default:
		return nil, invalidPayload(a.kind, "format %q is not social or video_script", p.Format)
	}
}

func (a *ContentGenerator) social(ctx context.Context, p ContentPayload) (json.RawMessage, error) {
	if err := requireText(a.kind,
		[2]string{"platform", p.Platform},
		[2]string{"topic", p.Topic},
	); err != nil {
		return nil, err
	}
	voice := p.BrandVoice
	if strings.TrimSpace(voice) == "" {
		voice = "professional"
	}
	spec := SpecForPlatform(p.Platform)

	prompt := fmt.Sprintf(`Create engaging %s content about %q.

- Brand voice: %s
- Platform tone: %s
- Max length: %d characters
- Include hashtags: %t

Requirements:
1. Hook readers in the first line
2. Provide value or insight
3. Include a call-to-action
4. Match the platform's style

Fields: content, hashtags, engagement_tips, best_posting_time`,
		p.Platform, p.Topic, voice, spec.Tone, spec.MaxLength, spec.Hashtags)

	obj, err := a.completeObject(ctx, prompt, "content", "hashtags", "engagement_tips", "best_posting_time")
	if err != nil {
		return nil, err
	}
	return encode(a.kind, obj)
}

func (a *ContentGenerator) videoScript(ctx context.Context, p ContentPayload) (json.RawMessage, error) {
	if err := requireText(a.kind,
		[2]string{"video_type", p.VideoType},
		[2]string{"topic", p.Topic},
	); err != nil {
		return nil, err
	}
	if p.Duration == 0 {
		p.Duration = 2
	}
	if p.Duration < 0 {
		return nil, invalidPayload(a.kind, "duration must be positive")
	}

	prompt := fmt.Sprintf(`Write a compelling %s script about %q for a %d-minute video.

Script requirements:
1. Strong hook in the first 5 seconds
2. Clear structure with introduction, main points and conclusion
3. Visual cues and direction notes
4. Call-to-action at the end
5. Time estimates for each section

Fields: title, hook, sections (array of objects with content, visuals, timing), cta, total_duration`,
		p.VideoType, p.Topic, p.Duration)

	obj, err := a.completeObject(ctx, prompt, "title", "hook", "sections", "cta", "total_duration")
	if err != nil {
		return nil, err
	}
	return encode(a.kind, obj)
}
