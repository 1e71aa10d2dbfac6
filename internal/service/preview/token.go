// Package preview 가용 상품 이미지들을 하나의 띠 형태 이미지로 합성하여 제공하는
// 미리보기 기능을 구현합니다.
//
// 미리보기 URL은 HMAC 서명된 토큰으로 보호되며, 토큰에는 합성할 이미지 URL 목록이
// 담겨 있습니다. 픽셀 단위의 이미지 처리는 외부 변환 서비스에 위임하고,
// 이 패키지는 합성 좌표 계산과 호출 순서만을 담당합니다.
package preview

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
)

// tokenSeparator 토큰의 페이로드부와 서명부를 구분하는 문자입니다.
const tokenSeparator = "."

// Payload 토큰에 서명되어 담기는 미리보기 요청 내용입니다.
type Payload struct {
	Images []string `json:"images"` // 합성할 이미지 URL 목록 (표시 순서 그대로)
}

// TokenCodec 미리보기 요청 토큰의 서명과 검증을 담당합니다.
//
// 토큰 형식: base64url(JSON 페이로드) + "." + base64url(HMAC-SHA256 서명)
// 비밀키를 모르는 외부인은 유효한 토큰을 만들 수 없으므로, 미리보기 엔드포인트를
// 임의 이미지 합성 프록시로 악용하는 것을 차단합니다.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec 새로운 TokenCodec을 생성합니다.
func NewTokenCodec(secret string) (*TokenCodec, error) {
	if secret == "" {
		return nil, apperrors.New(apperrors.InvalidInput, "토큰 서명용 비밀키가 입력되지 않았습니다.")
	}

	return &TokenCodec{secret: []byte(secret)}, nil
}

// Sign 페이로드를 직렬화하고 서명하여 URL에 포함 가능한 토큰 문자열을 생성합니다.
func (c *TokenCodec) Sign(payload Payload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "미리보기 페이로드 직렬화가 실패하였습니다.")
	}

	encoded := base64.RawURLEncoding.EncodeToString(data)
	signature := base64.RawURLEncoding.EncodeToString(c.sign(data))

	return encoded + tokenSeparator + signature, nil
}

// Verify 토큰의 서명을 검증하고 페이로드를 복원합니다.
// 형식이 잘못되었거나 서명이 일치하지 않으면 InvalidInput 타입의 에러를 반환합니다.
func (c *TokenCodec) Verify(token string) (*Payload, error) {
	encoded, signature, found := strings.Cut(token, tokenSeparator)
	if !found {
		return nil, apperrors.New(apperrors.InvalidInput, "토큰 형식이 유효하지 않습니다.")
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidInput, "토큰 페이로드 디코딩이 실패하였습니다.")
	}

	expected, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidInput, "토큰 서명 디코딩이 실패하였습니다.")
	}

	// 타이밍 공격을 방지하기 위해 상수 시간 비교를 사용합니다.
	if !hmac.Equal(c.sign(data), expected) {
		return nil, apperrors.New(apperrors.InvalidInput, "토큰 서명이 일치하지 않습니다.")
	}

	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidInput, "토큰 페이로드 해석이 실패하였습니다.")
	}

	return &payload, nil
}

func (c *TokenCodec) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(data)
	return mac.Sum(nil)
}
