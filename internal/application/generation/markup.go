// Package generation 实现章节生成编排
package generation

import (
	"strings"
)

// ParsedChapter 清洗后的章节
type ParsedChapter struct {
	Title string
	Body  string
}

// ParseChapterMarkup 解析模型输出的章节标记
// 已知标签：chapter/title 为包装标签，p 为段落，br 与 line 为换行
// 未知标签原样保留，残缺输出按纯文本处理
func ParseChapterMarkup(raw string) ParsedChapter {
	var body strings.Builder
	var title strings.Builder
	inTitle := false

	i := 0
	for i < len(raw) {
		if raw[i] != '<' {
			if inTitle {
				title.WriteByte(raw[i])
			} else {
				body.WriteByte(raw[i])
			}
			i++
			continue
		}

		end := strings.IndexByte(raw[i:], '>')
		if end < 0 {
			// 未闭合的尖括号按文本处理
			rest := raw[i:]
			if inTitle {
				title.WriteString(rest)
			} else {
				body.WriteString(rest)
			}
			break
		}
		tag := raw[i+1 : i+end]
		advance := end + 1

		switch normalizeTag(tag) {
		case "chapter", "/chapter":
			// 包装标签，丢弃
		case "title":
			inTitle = true
		case "/title":
			inTitle = false
		case "p":
			// 段落起始无输出
		case "/p":
			body.WriteString("\n\n")
		case "br", "br/":
			body.WriteString("\n")
		case "line":
		case "/line":
			body.WriteString("\n")
		default:
			// 未知标签原样保留
			literal := raw[i : i+advance]
			if inTitle {
				title.WriteString(literal)
			} else {
				body.WriteString(literal)
			}
		}
		i += advance
	}

	return ParsedChapter{
		Title: strings.TrimSpace(title.String()),
		Body:  normalizeWhitespace(body.String()),
	}
}

func normalizeTag(tag string) string {
	tag = strings.TrimSpace(strings.ToLower(tag))
	// 带属性的标签只按名称分发（如 <chapter seq="1" title="...">）
	if idx := strings.IndexAny(tag, " \t\n"); idx >= 0 {
		name := strings.TrimSuffix(tag[:idx], "/")
		switch name {
		case "chapter", "p", "title", "line", "br":
			return name
		}
		return tag
	}
	return strings.ReplaceAll(tag, " ", "")
}

// normalizeWhitespace 收敛多余空行并去除首尾空白
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t\r")
	}
	s = strings.Join(lines, "\n")

	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}
