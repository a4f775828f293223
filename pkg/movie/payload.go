package movie

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/text/encoding/htmlindex"
)

// Payload はトランスポートから渡されるレスポンスの入れ物
// Data, Text, Response のうち最初の空でないものを使う
type Payload struct {
	Data     []byte
	Text     string
	Response []byte

	// Charset は本文のエンコーディング（"Shift_JIS" や "EUC-JP" など）
	// 空ならUTF-8
	Charset string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// unwrapPayload はフェッチャーの戻り値からスクリプト本文を取り出す
func unwrapPayload(v any) ([]byte, error) {
	var (
		body    []byte
		charset string
	)

	switch p := v.(type) {
	case []byte:
		body = p
	case string:
		body = []byte(p)
	case io.Reader:
		b, err := io.ReadAll(p)
		if err != nil {
			return nil, fmt.Errorf("%w: read payload: %v", ErrTypeMismatch, err)
		}
		body = b
	case Payload:
		body, charset = p.body(), p.Charset
	case *Payload:
		if p == nil {
			return nil, fmt.Errorf("%w: nil payload", ErrTypeMismatch)
		}
		body, charset = p.body(), p.Charset
	case map[string]any:
		for _, key := range []string{"data", "text", "response"} {
			if b := bytesOf(p[key]); len(b) > 0 {
				body = b
				break
			}
		}
		charset, _ = p["charset"].(string)
	default:
		return nil, fmt.Errorf("%w: unsupported payload %T", ErrTypeMismatch, v)
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrTypeMismatch)
	}

	if charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown charset %q", ErrTypeMismatch, charset)
		}
		decoded, err := enc.NewDecoder().Bytes(body)
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrTypeMismatch, charset, err)
		}
		body = decoded
	}
	return bytes.TrimPrefix(body, utf8BOM), nil
}

func (p Payload) body() []byte {
	switch {
	case len(p.Data) > 0:
		return p.Data
	case p.Text != "":
		return []byte(p.Text)
	default:
		return p.Response
	}
}

func bytesOf(v any) []byte {
	switch x := v.(type) {
	case []byte:
		return x
	case string:
		return []byte(x)
	}
	return nil
}
