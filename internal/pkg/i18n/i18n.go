// File: internal/pkg/i18n/i18n.go
package i18n

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"doom-loot/internal/pkg/ctxkey"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// 支持的语言
var (
	// 游戏客户端默认英文
	DefaultLanguage = language.English
	// 支持的语言列表
	SupportedLanguages = []language.Tag{
		language.English,
	}
	// 语言匹配器
	matcher = language.NewMatcher(SupportedLanguages)

	// 各语言的死亡消息格式
	deathPatterns = map[language.Tag]*regexp.Regexp{
		language.English: regexp.MustCompile(`You have been defeated by (.*)!`),
	}

	tagPattern = regexp.MustCompile(`<[^>]*>`)
	folder     = cases.Fold()
)

// WithLanguage 在 context 中设置语言偏好
func WithLanguage(ctx context.Context, lang language.Tag) context.Context {
	return context.WithValue(ctx, ctxkey.Language, lang)
}

// GetLanguage 从 context 中获取语言偏好
func GetLanguage(ctx context.Context) language.Tag {
	if lang, ok := ctx.Value(ctxkey.Language).(language.Tag); ok {
		return lang
	}
	return DefaultLanguage
}

// ParseLanguageCode 从语言代码解析 Tag，不支持的语言回退到默认语言
func ParseLanguageCode(code string) language.Tag {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultLanguage
	}

	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLanguage
	}

	_, index, _ := matcher.Match(tag)
	return SupportedLanguages[index]
}

// MatchDeathMessage 解析 "You have been defeated by X!" 消息，返回击杀者名称
func MatchDeathMessage(ctx context.Context, text string) (string, bool) {
	pattern, ok := deathPatterns[ParseLanguageCode(GetLanguage(ctx).String())]
	if !ok {
		pattern = deathPatterns[DefaultLanguage]
	}
	m := pattern.FindStringSubmatch(StripTags(text))
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// StripTags 去除聊天消息中的颜色等标签
func StripTags(text string) string {
	return tagPattern.ReplaceAllString(text, "")
}

// EqualFold 忽略大小写比较名称（Unicode case folding）
func EqualFold(a, b string) bool {
	return folder.String(strings.TrimSpace(a)) == folder.String(strings.TrimSpace(b))
}

// TitleCase 将档案类型等枚举名转换为标题格式，例如 FRESH_START_WORLD -> Fresh Start World
func TitleCase(s string) string {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", " ")
	return cases.Title(language.English).String(s)
}

// FormatGold 以侧边栏的紧凑格式显示金币：1.2M、3.4K 或原值
func FormatGold(value int64) string {
	switch {
	case value >= 1_000_000:
		return strconv.FormatFloat(float64(value)/1_000_000.0, 'f', 1, 64) + "M"
	case value >= 1_000:
		return strconv.FormatFloat(float64(value)/1_000.0, 'f', 1, 64) + "K"
	default:
		return strconv.FormatInt(value, 10)
	}
}

// FormatGP 以千分位格式显示完整金币数，例如 1,234,567 gp
func FormatGP(ctx context.Context, value int64) string {
	return message.NewPrinter(GetLanguage(ctx)).Sprintf("%d gp", value)
}
