package session

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const DefaultJPEGQuality = 90

// Encoder writes img to w in a specific image format
type Encoder func(w io.Writer, img image.Image) error

// SaveResult describes a committed image file
type SaveResult struct {
	Path string
	Size int64
}

// EncoderFor picks the encoder matching the file extension: .jpg and .jpeg
// use JPEG with the given quality, everything else PNG.
func EncoderFor(filename string, jpegQuality int) Encoder {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		if jpegQuality <= 0 {
			jpegQuality = DefaultJPEGQuality
		}
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
		}
	default:
		return png.Encode
	}
}

// SaveImage writes img into the session directory as filename using the
// encoder matching its extension.
func (s *Session) SaveImage(img image.Image, filename string) (SaveResult, error) {
	return SaveAtomic(s.Dir, filename, img, EncoderFor(filename, s.JPEGQuality))
}

// SaveAtomic encodes img to a temporary file in dir, verifies it is non-empty
// and decodes back, then renames it to filename. The final path either does
// not exist or holds a complete image. On any failure the temporary file is
// removed and an error wrapping ErrSaveFailed is returned.
func SaveAtomic(dir, filename string, img image.Image, encode Encoder) (result SaveResult, err error) {
	final := filepath.Join(dir, filename)

	tmp, err := os.CreateTemp(dir, ".tmp_*"+filepath.Ext(filename))
	if err != nil {
		return result, fmt.Errorf("%w: creating temp file: %w", ErrSaveFailed, err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err = encode(tmp, img); err != nil {
		_ = tmp.Close()
		return result, fmt.Errorf("%w: encoding %s: %w", ErrSaveFailed, filename, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return result, fmt.Errorf("%w: syncing %s: %w", ErrSaveFailed, filename, err)
	}
	if err = tmp.Close(); err != nil {
		return result, fmt.Errorf("%w: closing %s: %w", ErrSaveFailed, filename, err)
	}

	size, err := verifyImage(tmpPath)
	if err != nil {
		return result, fmt.Errorf("%w: verifying %s: %w", ErrSaveFailed, filename, err)
	}

	if err = os.Rename(tmpPath, final); err != nil {
		return result, fmt.Errorf("%w: renaming %s: %w", ErrSaveFailed, filename, err)
	}
	committed = true

	return SaveResult{Path: final, Size: size}, nil
}

func verifyImage(path string) (size int64, err error) {
	stat, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if stat.Size() == 0 {
		return 0, fmt.Errorf("empty file")
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer closeWithError(f, &err)

	if _, _, err = image.Decode(f); err != nil {
		return 0, fmt.Errorf("decoding: %w", err)
	}
	return stat.Size(), nil
}
