// Package translation 实现章节翻译的请求状态机与缓存
package translation

import (
	"storyloom-api/internal/domain/entity"
)

// 质量分档位
const (
	qualityGood       = 1.0
	qualityAcceptable = 0.8
	qualityPoor       = 0.6
)

// QualityScore 基于词数比的启发式质量评分
// 比值 = 译文词数 / 原文词数：[0.7, 1.5] 记 1.0，
// [0.5, 0.7) 与 (1.5, 2.0] 记 0.8，其余记 0.6
func QualityScore(original, translated string) float64 {
	srcWords := entity.CountWords(original)
	dstWords := entity.CountWords(translated)
	if srcWords == 0 || dstWords == 0 {
		return qualityPoor
	}

	ratio := float64(dstWords) / float64(srcWords)
	switch {
	case ratio >= 0.7 && ratio <= 1.5:
		return qualityGood
	case (ratio >= 0.5 && ratio < 0.7) || (ratio > 1.5 && ratio <= 2.0):
		return qualityAcceptable
	default:
		return qualityPoor
	}
}
