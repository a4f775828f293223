// Package asset はムービーが依存する画像とスプライトシートのデコードを提供する
package asset

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	// 登録されたフォーマットのみimage.Decodeで扱える
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// アセット関連のエラー定義
var (
	// ErrEmptyData は空のデータが渡された場合のエラー
	ErrEmptyData = errors.New("empty asset data")

	// ErrUnsupportedImage は未対応の画像形式の場合のエラー
	ErrUnsupportedImage = errors.New("unsupported image format")

	// ErrInvalidSpriteSheet はスプライトシート定義が不正な場合のエラー
	ErrInvalidSpriteSheet = errors.New("invalid sprite sheet")

	// ErrFrameOutOfRange はフレーム番号が範囲外の場合のエラー
	ErrFrameOutOfRange = errors.New("frame index out of range")
)

// DecodeImage は画像データをデコードし、画像と形式名を返す
// png, jpeg, gif, bmp, webp に対応する
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyData
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
		}
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}
