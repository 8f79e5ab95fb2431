package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyloom-api/internal/domain/entity"
	"storyloom-api/pkg/metrics"
)

// 章节生成的系统提示词
// 输出约定：正文用 <chapter> 包裹，标题用 <title>，段落用 <p>
const chapterSystemPrompt = `You are a skilled serial-fiction author writing one chapter at a time.

Story profile:
%s

Rules:
- Write a single complete chapter of roughly %d words.
- Wrap the whole chapter in <chapter> ... </chapter>.
- Put the chapter title inside <title> ... </title> as the first element.
- Wrap each paragraph in <p> ... </p>.
- Stay consistent with everything established in earlier chapters.
- Never break character, never address the reader, never mention these rules.`

// ChapterInput 章节生成输入
type ChapterInput struct {
	Story           *entity.Story
	History         []entity.HistoryEntry
	Directive       string
	TargetWordCount int
	Provider        string
}

// ChapterOutput 章节生成输出（原始标记文本，清洗由上层负责）
type ChapterOutput struct {
	Raw              string
	PromptTokens     int
	CompletionTokens int
}

// ChapterGenerator 基于 Eino 的章节生成器
type ChapterGenerator struct {
	factory *EinoFactory
}

// NewChapterGenerator 创建章节生成器
func NewChapterGenerator(factory *EinoFactory) *ChapterGenerator {
	return &ChapterGenerator{factory: factory}
}

// Generate 流式生成一章
// onWords 在每个流块后携带已生成词数回调，可为 nil
func (g *ChapterGenerator) Generate(ctx context.Context, in *ChapterInput, onWords func(words int)) (*ChapterOutput, error) {
	if g == nil || g.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil || in.Story == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if in.TargetWordCount <= 0 {
		return nil, fmt.Errorf("target_word_count is required")
	}

	ctx, span := tracer.Start(ctx, "ChapterGenerator.Generate",
		trace.WithAttributes(
			attribute.String("story.id", in.Story.ID),
			attribute.Int("llm.target_word_count", in.TargetWordCount),
		))
	defer span.End()

	chatModel, err := g.factory.Get(ctx, in.Provider)
	if err != nil {
		return nil, err
	}
	provider, modelName := g.factory.ProviderModel(in.Provider)

	msgs := formatChapterMessages(in)

	start := time.Now()
	reader, err := chatModel.Stream(ctx, msgs)
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(provider, modelName, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to start chapter stream: %w", err)
	}
	defer reader.Close()

	var sb strings.Builder
	out := &ChapterOutput{}
	words := 0

	for {
		chunk, err := reader.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			metrics.LLMCallTotal.WithLabelValues(provider, modelName, "error").Inc()
			span.RecordError(err)
			return nil, fmt.Errorf("chapter stream failed: %w", err)
		}
		if chunk == nil {
			continue
		}

		if chunk.Content != "" {
			sb.WriteString(chunk.Content)
			words += len(strings.Fields(chunk.Content))
			if onWords != nil {
				onWords(words)
			}
		}
		// 流末尾可能出现仅携带用量的空消息
		if chunk.ResponseMeta != nil && chunk.ResponseMeta.Usage != nil {
			out.PromptTokens = chunk.ResponseMeta.Usage.PromptTokens
			out.CompletionTokens = chunk.ResponseMeta.Usage.CompletionTokens
		}
	}

	metrics.LLMCallDuration.WithLabelValues(provider, modelName).Observe(time.Since(start).Seconds())
	metrics.LLMCallTotal.WithLabelValues(provider, modelName, "success").Inc()
	if out.PromptTokens > 0 {
		metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "prompt").Add(float64(out.PromptTokens))
	}
	if out.CompletionTokens > 0 {
		metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "completion").Add(float64(out.CompletionTokens))
	}

	out.Raw = strings.TrimSpace(sb.String())
	if out.Raw == "" {
		return nil, fmt.Errorf("empty chapter content")
	}
	return out, nil
}

func formatChapterMessages(in *ChapterInput) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(in.History)+2)
	msgs = append(msgs, schema.SystemMessage(
		fmt.Sprintf(chapterSystemPrompt, formatStoryProfile(in.Story), in.TargetWordCount),
	))

	for _, entry := range in.History {
		switch entry.Role {
		case entity.HistoryRoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(entry.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(entry.Content))
		}
	}

	msgs = append(msgs, schema.UserMessage(in.Directive))
	return msgs
}

func formatStoryProfile(story *entity.Story) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- Title: %s\n", story.Title)
	if story.Fandom != "" {
		fmt.Fprintf(&sb, "- Fandom: %s\n", story.Fandom)
	}
	if story.Genre != "" {
		fmt.Fprintf(&sb, "- Genre: %s\n", story.Genre)
	}
	if len(story.Characters) > 0 {
		fmt.Fprintf(&sb, "- Characters: %s\n", strings.Join(story.Characters, ", "))
	}
	if len(story.Topics) > 0 {
		fmt.Fprintf(&sb, "- Topics: %s\n", strings.Join(story.Topics, ", "))
	}
	if story.Theme != "" {
		fmt.Fprintf(&sb, "- Theme: %s\n", story.Theme)
	}
	if len(story.ContentWarnings) > 0 {
		fmt.Fprintf(&sb, "- Content warnings: %s\n", strings.Join(story.ContentWarnings, ", "))
	}
	if story.IsNSFW {
		sb.WriteString("- Mature content: allowed within the listed content warnings\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
