package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// Product types handled by the product generator.
const (
	ProductEbook    = "ebook"
	ProductTemplate = "template"
)

const (
	defaultChapterCount = 7
	maxChapterCount     = 30
)

// ProductPayload is the input for a product_generator task.
// Ebooks use Topic, TargetAudience and ChapterCount; templates use TemplateType and Industry.
type ProductPayload struct {
	ProductType    string `json:"product_type"`
	Topic          string `json:"topic,omitempty"`
	TargetAudience string `json:"target_audience,omitempty"`
	ChapterCount   int    `json:"chapter_count,omitempty"`
	TemplateType   string `json:"template_type,omitempty"`
	Industry       string `json:"industry,omitempty"`
}

// ChapterContent is one written chapter of an ebook.
type ChapterContent struct {
	ChapterNumber int    `json:"chapter_number"`
	Title         string `json:"title"`
	Content       string `json:"content"`
}

// ProductGenerator writes ebooks and business templates.
type ProductGenerator struct{ base }

// NewProductGenerator returns a product_generator invoker.
func NewProductGenerator(c Completer, opts ...Option) *ProductGenerator {
	return &ProductGenerator{base: newBase(models.KindProductGenerator, c, opts)}
}

// Run implements Invoker.
func (a *ProductGenerator) Run(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p ProductPayload
	if err := decodePayload(a.kind, payload, &p); err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(p.ProductType)) {
	case "", ProductEbook:
		return a.ebook(ctx, p)
	case ProductTemplate:
		return a.template(ctx, p)
	default:
		return nil, invalidPayload(a.kind, "product_type %q is not ebook or template", p.ProductType)
	}
}

// ebook makes one outline call and then one call per chapter.
func (a *ProductGenerator) ebook(ctx context.Context, p ProductPayload) (json.RawMessage, error) {
	if err := requireText(a.kind, [2]string{"topic", p.Topic}); err != nil {
		return nil, err
	}
	if p.ChapterCount == 0 {
		p.ChapterCount = defaultChapterCount
	}
	if p.ChapterCount < 1 || p.ChapterCount > maxChapterCount {
		return nil, invalidPayload(a.kind, "chapter_count must be between 1 and %d", maxChapterCount)
	}
	audience := p.TargetAudience
	if strings.TrimSpace(audience) == "" {
		audience = "a general professional audience"
	}

	outlinePrompt := fmt.Sprintf(`Create a detailed outline for an ebook about %q for %s.

Include %d chapters, each with:
1. A chapter title
2. Key points
3. Learning objectives
4. Practical exercises or examples

Fields: title, description, target_audience, chapters (array of objects with a title field)`, p.Topic, audience, p.ChapterCount)

	outline, err := a.completeObject(ctx, outlinePrompt, "title", "description", "target_audience", "chapters")
	if err != nil {
		return nil, err
	}

	var chapters []map[string]json.RawMessage
	if err := json.Unmarshal(outline["chapters"], &chapters); err != nil {
		return nil, malformed(a.kind, "chapters is not an array of objects: %v", err)
	}
	if len(chapters) == 0 {
		return nil, malformed(a.kind, "outline has no chapters")
	}

	written := make([]ChapterContent, 0, len(chapters))
	for i, ch := range chapters {
		title := chapterTitle(ch, i+1)
		chapterJSON, _ := json.Marshal(ch)

		chapterPrompt := fmt.Sprintf(`Write the full content for Chapter %d: %s

Topic: %s
Target Audience: %s
Chapter Outline: %s

Write engaging, informative content (800-%d words) with clear explanations,
practical examples and actionable advice. Answer with the chapter text only.`,
			i+1, title, p.Topic, audience, chapterJSON, a.settings.chapterMaxWords)

		text, err := a.complete(ctx, Prompt{User: chapterPrompt})
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, malformed(a.kind, "chapter %d came back empty", i+1)
		}
		written = append(written, ChapterContent{ChapterNumber: i + 1, Title: title, Content: text})
	}

	content, err := json.Marshal(written)
	if err != nil {
		return nil, malformed(a.kind, "encode chapters: %v", err)
	}
	outline["chapters_content"] = content
	return encode(a.kind, outline)
}

func (a *ProductGenerator) template(ctx context.Context, p ProductPayload) (json.RawMessage, error) {
	if err := requireText(a.kind,
		[2]string{"template_type", p.TemplateType},
		[2]string{"industry", p.Industry},
	); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Create a professional %s template for the %s industry.

The template should:
1. Include all necessary legal and business sections
2. Use professional language and formatting
3. Mark placeholder fields as [FIELD_NAME]
4. Be specific to the industry and comprehensive
5. Follow best practices for a %s

Fields: title, description, sections (array), placeholders (array)`, p.TemplateType, p.Industry, p.TemplateType)

	obj, err := a.completeObject(ctx, prompt, "title", "description", "sections", "placeholders")
	if err != nil {
		return nil, err
	}
	return encode(a.kind, obj)
}

func chapterTitle(ch map[string]json.RawMessage, n int) string {
	var title string
	if raw, ok := ch["title"]; ok {
		_ = json.Unmarshal(raw, &title)
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Sprintf("Chapter %d", n)
	}
	return title
}
