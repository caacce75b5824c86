package util

import "strings"

const (
	// KakaoSeeMorePadding zero-width spaces push the body behind KakaoTalk's "전체보기" fold.
	KakaoSeeMorePadding = 500
	KakaoZeroWidthSpace = "\u200b"
)

// SeeMore keeps header visible in the chat preview and folds body behind it.
// A body repeating the header on its first line has that line removed.
func SeeMore(header, body string) string {
	if strings.TrimSpace(body) == "" {
		return body
	}
	header = strings.TrimSpace(header)
	if header != "" {
		body = strings.TrimLeft(strings.TrimPrefix(body, header), "\r\n")
	}

	var sb strings.Builder
	sb.Grow(len(header) + len(KakaoZeroWidthSpace)*KakaoSeeMorePadding + len(body) + 1)
	sb.WriteString(header)
	sb.WriteString(strings.Repeat(KakaoZeroWidthSpace, KakaoSeeMorePadding))
	sb.WriteByte('\n')
	sb.WriteString(body)
	return sb.String()
}
