package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
)

const (
	uploadURLPrefix = "/uploads/"
	maxImageSize    = 5 << 20
)

var allowedImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// Uploads stores images under Dir, served publicly below /uploads/.
type Uploads struct {
	Dir string
}

// Save writes file under a fresh name and returns its public path.
func (u Uploads) Save(file *multipart.FileHeader) (string, error) {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == "" {
		return "", apperr.BadRequest("image file extension is required")
	}
	if _, ok := allowedImageExtensions[extension]; !ok {
		return "", apperr.BadRequest("unsupported image type: %s", extension)
	}
	if file.Size > maxImageSize {
		return "", apperr.BadRequest("image file too large (max 5MB)")
	}

	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	filename := primitive.NewObjectID().Hex() + extension
	out, err := os.Create(filepath.Join(u.Dir, filename))
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	defer out.Close()

	in, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return uploadURLPrefix + filename, nil
}

// Delete removes a file previously returned by Save. Paths outside the
// upload directory are refused; a missing file is not an error.
func (u Uploads) Delete(publicPath string) error {
	trimmed := strings.TrimSpace(publicPath)
	if trimmed == "" {
		return nil
	}

	clean := path.Clean("/" + strings.TrimPrefix(trimmed, "/"))
	if !strings.HasPrefix(clean, uploadURLPrefix) {
		return fmt.Errorf("refusing to delete non-upload path: %s", publicPath)
	}
	rel := strings.TrimPrefix(clean, uploadURLPrefix)

	base := filepath.Clean(u.Dir)
	target := filepath.Clean(filepath.Join(base, filepath.FromSlash(rel)))
	if target == base || !strings.HasPrefix(target, base+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to delete path outside upload dir: %s", publicPath)
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
