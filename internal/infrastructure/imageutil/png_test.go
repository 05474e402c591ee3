package imageutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// テスト用のダミー画像（10x10の赤い正方形）を作成するヘルパー
func createDummyImageData(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}

	buf := new(bytes.Buffer)
	var err error
	switch format {
	case "png":
		err = png.Encode(buf, img)
	case "jpeg":
		err = jpeg.Encode(buf, img, nil)
	default:
		t.Fatalf("unsupported format: %s", format)
	}
	require.NoError(t, err)
	return buf.Bytes()
}

func TestEnsurePNG(t *testing.T) {
	t.Run("PNGはそのまま返されること", func(t *testing.T) {
		data := createDummyImageData(t, "png")

		got, err := EnsurePNG(data)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("JPEGがPNGに変換されること", func(t *testing.T) {
		data := createDummyImageData(t, "jpeg")
		require.False(t, IsPNG(data))

		got, err := EnsurePNG(data)
		require.NoError(t, err)
		assert.True(t, IsPNG(got))

		img, format, err := image.Decode(bytes.NewReader(got))
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, 10, img.Bounds().Dx())
	})

	t.Run("不正なデータはエラーになること", func(t *testing.T) {
		_, err := EnsurePNG([]byte("not an image"))
		assert.Error(t, err)
	})

	t.Run("空のデータはエラーになること", func(t *testing.T) {
		_, err := EnsurePNG(nil)
		assert.Error(t, err)
	})
}
