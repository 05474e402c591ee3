package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"imaginebot/internal/application"
	"imaginebot/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const filePermission = 0o644

// TempImageStore は、送信前の画像をリクエストごとの一時ディレクトリに保存します
// ディレクトリ名にリクエストIDと UUID を使うため、同名ファイルが衝突することはありません
type TempImageStore struct {
	baseDir string
	logger  *zap.Logger
}

var _ application.ImageStore = (*TempImageStore)(nil)

// NewTempImageStore は新しいTempImageStoreインスタンスを作成します
// baseDir が空の場合は OS の一時ディレクトリを使用します
func NewTempImageStore(baseDir string, logger *zap.Logger) (*TempImageStore, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "imaginebot")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}
	return &TempImageStore{baseDir: baseDir, logger: logger}, nil
}

// Save は、画像を output_0.png, output_1.png ... として保存します
func (s *TempImageStore) Save(ctx context.Context, requestID string, images []domain.GeneratedImage) ([]application.StoredImage, error) {
	dir, err := os.MkdirTemp(s.baseDir, sanitize(requestID)+"-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("一時ディレクトリの作成に失敗: %w", err)
	}

	stored := make([]application.StoredImage, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			_ = os.RemoveAll(dir)
			return nil, err
		}

		name := fmt.Sprintf("output_%d.png", i)
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, img.Data, filePermission); err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("画像の保存に失敗 (%s): %w", name, err)
		}

		contentType := img.MimeType
		if contentType == "" {
			contentType = "image/png"
		}
		stored = append(stored, application.StoredImage{Name: name, Path: path, ContentType: contentType})
	}

	s.logger.Debug("画像を一時保存しました", zap.String("dir", dir), zap.Int("count", len(stored)))
	return stored, nil
}

// Remove は、保存した画像とそのディレクトリを削除します
func (s *TempImageStore) Remove(images []application.StoredImage) error {
	var errs []error
	dirs := make(map[string]struct{})
	for _, img := range images {
		if err := os.Remove(img.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		dirs[filepath.Dir(img.Path)] = struct{}{}
	}
	for dir := range dirs {
		// baseDir の外は消さない
		if filepath.Dir(dir) != filepath.Clean(s.baseDir) {
			continue
		}
		if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sanitize は、リクエストIDをディレクトリ名に使える文字だけにします
func sanitize(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "request"
	}
	if len(out) > 32 {
		out = out[:32]
	}
	return string(out)
}
