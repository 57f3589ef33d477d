package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

const defaultLanguage = "python"

// DefaultReviewCriteria are used when a review task names none.
var DefaultReviewCriteria = []string{
	"code quality and readability",
	"security vulnerabilities",
	"performance optimizations",
	"error handling",
	"best practices compliance",
	"documentation quality",
}

// CodeGenPayload is the input for a code_generator task.
// ProjectSpec may be a JSON object or a plain description string.
type CodeGenPayload struct {
	ProjectSpec json.RawMessage `json:"project_spec"`
	Language    string          `json:"language,omitempty"`
}

// CodeReviewPayload is the input for a code_reviewer task.
type CodeReviewPayload struct {
	CodeContent    string   `json:"code_content"`
	Language       string   `json:"language,omitempty"`
	ReviewCriteria []string `json:"review_criteria,omitempty"`
}

// CodeGenerator produces a small code project from a specification.
type CodeGenerator struct{ base }

// NewCodeGenerator returns a code_generator invoker.
func NewCodeGenerator(c Completer, opts ...Option) *CodeGenerator {
	return &CodeGenerator{base: newBase(models.KindCodeGenerator, c, opts)}
}

// Run implements Invoker.
func (a *CodeGenerator) Run(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p CodeGenPayload
	if err := decodePayload(a.kind, payload, &p); err != nil {
		return nil, err
	}
	if isNull(p.ProjectSpec) || string(p.ProjectSpec) == `""` || string(p.ProjectSpec) == "{}" {
		return nil, invalidPayload(a.kind, "project_spec is required")
	}
	lang := languageOrDefault(p.Language)

	prompt := fmt.Sprintf(`Generate a complete %s code project from this specification.

Project Specification: %s

Requirements:
1. A well-structured project with sensible file organization
2. All necessary files (main code, configuration, dependency manifest)
3. Clean, documented, production-ready code
4. Error handling and input validation
5. Idiomatic %s

Fields: project_structure, files (array of objects with filename, content, description), setup_instructions, usage_examples`,
		lang, compactJSON(p.ProjectSpec), lang)

	obj, err := a.completeObject(ctx, prompt, "project_structure", "files", "setup_instructions", "usage_examples")
	if err != nil {
		return nil, err
	}

	var files []json.RawMessage
	if err := json.Unmarshal(obj["files"], &files); err != nil {
		return nil, malformed(a.kind, "files is not an array: %v", err)
	}
	return encode(a.kind, obj)
}

// CodeReviewer reviews a piece of code against a list of criteria.
type CodeReviewer struct{ base }

// NewCodeReviewer returns a code_reviewer invoker.
func NewCodeReviewer(c Completer, opts ...Option) *CodeReviewer {
	return &CodeReviewer{base: newBase(models.KindCodeReviewer, c, opts)}
}

// Run implements Invoker.
func (a *CodeReviewer) Run(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p CodeReviewPayload
	if err := decodePayload(a.kind, payload, &p); err != nil {
		return nil, err
	}
	if err := requireText(a.kind, [2]string{"code_content", p.CodeContent}); err != nil {
		return nil, err
	}
	lang := languageOrDefault(p.Language)
	criteria := p.ReviewCriteria
	if len(criteria) == 0 {
		criteria = DefaultReviewCriteria
	}

	prompt := fmt.Sprintf("Perform a comprehensive code review of this %s code.\n\n```%s\n%s\n```\n\n"+
		`Review Criteria: %s

Include:
1. An overall quality score from 1 to 10
2. Specific issues with line references
3. Security concerns
4. Performance suggestions
5. Suggested improvements with code examples
6. Testing recommendations

Fields: overall_score, issues (array), security_concerns, performance_suggestions, improvements, testing_recommendations`,
		lang, lang, p.CodeContent, strings.Join(criteria, ", "))

	obj, err := a.completeObject(ctx, prompt,
		"overall_score", "issues", "security_concerns", "performance_suggestions", "improvements", "testing_recommendations")
	if err != nil {
		return nil, err
	}

	var score float64
	if err := json.Unmarshal(obj["overall_score"], &score); err != nil {
		return nil, malformed(a.kind, "overall_score is not a number: %v", err)
	}
	if score < 0 || score > 10 {
		return nil, malformed(a.kind, "overall_score %v is outside 0-10", score)
	}
	return encode(a.kind, obj)
}

func languageOrDefault(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return defaultLanguage
	}
	return lang
}
