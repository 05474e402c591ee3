package imageutil

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// IsPNG は、データがPNGのシグネチャで始まるかを返します
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngSignature)
}

// EnsurePNG は、画像データをPNG形式で返します
// すでにPNGの場合はそのまま返し、それ以外は image.Decode が対応する形式から変換します
func EnsurePNG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("画像データが空です")
	}
	if IsPNG(data) {
		return data, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("画像のデコードに失敗: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("%s からPNGへの変換に失敗: %w", format, err)
	}
	return buf.Bytes(), nil
}
