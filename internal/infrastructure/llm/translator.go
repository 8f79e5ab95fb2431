package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "storyloom-api/pkg/errors"
	"storyloom-api/pkg/metrics"
)

// 翻译系统提示词
// 输出必须使用固定标签，便于确定性解析
const translateSystemPrompt = `You are a professional literary translator translating serial fiction from %s to %s.

Rules:
- Preserve the author's voice, register and pacing.
- Keep character names untranslated unless a canonical localized form exists.
- Output EXACTLY this structure and nothing else:

<translated_title>the translated chapter title</translated_title>
<translated_content>the translated chapter body</translated_content>
<translation_notes>brief notes on non-obvious choices, may be empty</translation_notes>`

// TranslateInput 翻译输入
type TranslateInput struct {
	SourceLanguage string
	TargetLanguage string
	Title          string
	Content        string
	Provider       string
}

// TranslateOutput 翻译输出
type TranslateOutput struct {
	Title   string
	Content string
	Notes   string
}

// Translator 基于 Eino 的章节翻译器
type Translator struct {
	factory *EinoFactory
}

// NewTranslator 创建翻译器
func NewTranslator(factory *EinoFactory) *Translator {
	return &Translator{factory: factory}
}

// Translate 翻译一章
func (t *Translator) Translate(ctx context.Context, in *TranslateInput) (*TranslateOutput, error) {
	if t == nil || t.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("content is required")
	}
	if strings.TrimSpace(in.TargetLanguage) == "" {
		return nil, fmt.Errorf("target language is required")
	}

	ctx, span := tracer.Start(ctx, "Translator.Translate",
		trace.WithAttributes(
			attribute.String("translation.source_language", in.SourceLanguage),
			attribute.String("translation.target_language", in.TargetLanguage),
		))
	defer span.End()

	chatModel, err := t.factory.Get(ctx, in.Provider)
	if err != nil {
		return nil, err
	}
	provider, modelName := t.factory.ProviderModel(in.Provider)

	src := in.SourceLanguage
	if src == "" {
		src = "the source language"
	}

	msgs := []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(translateSystemPrompt, src, in.TargetLanguage)),
		schema.UserMessage(fmt.Sprintf("Title: %s\n\n%s", in.Title, in.Content)),
	}

	start := time.Now()
	outMsg, err := chatModel.Generate(ctx, msgs)
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(provider, modelName, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to translate chapter: %w", err)
	}
	metrics.LLMCallDuration.WithLabelValues(provider, modelName).Observe(time.Since(start).Seconds())
	metrics.LLMCallTotal.WithLabelValues(provider, modelName, "success").Inc()

	if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
		return nil, apperrors.ErrMalformedLLMOutput.WithDetail("empty translation response")
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "prompt").Add(float64(outMsg.ResponseMeta.Usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "completion").Add(float64(outMsg.ResponseMeta.Usage.CompletionTokens))
	}

	return parseTranslateOutput(outMsg.Content)
}

// parseTranslateOutput 解析带标签的翻译输出
// translated_content 缺失视为模型未遵守输出契约
func parseTranslateOutput(raw string) (*TranslateOutput, error) {
	content, ok := extractTag(raw, "translated_content")
	if !ok || strings.TrimSpace(content) == "" {
		return nil, apperrors.ErrMalformedLLMOutput.WithDetail("missing translated_content tag")
	}

	title, _ := extractTag(raw, "translated_title")
	notes, _ := extractTag(raw, "translation_notes")

	return &TranslateOutput{
		Title:   strings.TrimSpace(title),
		Content: strings.TrimSpace(content),
		Notes:   strings.TrimSpace(notes),
	}, nil
}

func extractTag(s, tag string) (string, bool) {
	openTag := "<" + tag + ">"
	closeTag := "</" + tag + ">"

	start := strings.Index(s, openTag)
	if start < 0 {
		return "", false
	}
	start += len(openTag)

	end := strings.Index(s[start:], closeTag)
	if end < 0 {
		return "", false
	}
	return s[start : start+end], true
}
