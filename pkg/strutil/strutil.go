// Package strutil은 문자열 처리를 위한 다양한 유틸리티 함수들을 제공합니다.
package strutil

import (
	"strings"
)

// NormalizeSpaces 문자열의 앞뒤 공백을 제거하고 연속된 공백을 하나로 축약합니다.
// 예: "  hello   world  " -> "hello world"
func NormalizeSpaces(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

// TrimSuffixSpaces 주어진 접미사를 제거한 후 남은 문자열의 공백을 정규화합니다.
// 접미사가 없으면 공백 정규화만 수행됩니다.
// 예: ("Colombia Nariño - Instant Coffee", " - Instant Coffee") -> "Colombia Nariño"
func TrimSuffixSpaces(s, suffix string) string {
	return NormalizeSpaces(strings.TrimSuffix(s, suffix))
}

// SplitAndTrim 주어진 구분자로 문자열을 분리한 후, 각 항목의 앞뒤 공백을 제거하고 빈 문자열을 제외한 슬라이스를 반환합니다.
// 결과가 없거나 입력 문자열이 비어있는 경우 nil을 반환합니다.
// 예: "a, , b,c" (구분자 ",") -> ["a", "b", "c"]
func SplitAndTrim(s, sep string) []string {
	tokens := strings.Split(s, sep)
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token != "" {
			result = append(result, token)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}
