// Package media stages uploaded files on local disk and hands them to a media
// host (local directory or S3-compatible bucket) that returns a public URL.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge   = errors.New("media file too large")
	ErrDisallowedType = errors.New("disallowed media type")
	ErrExecutableFile = errors.New("executable files are not allowed")
	ErrInvalidPath    = errors.New("invalid media path")
	ErrEmptyFile      = errors.New("media file is empty")
)

// Asset is a file stored on the media host.
type Asset struct {
	Key       string
	URL       string
	MimeType  string
	SizeBytes int64
}

// Uploader is the media host. Upload reads the file at localPath and never
// removes it; the caller owns the local file.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (*Asset, error)
	// Delete removes the asset behind url. URLs the host does not own are
	// ignored.
	Delete(ctx context.Context, url string) error
}

// inspectFile sniffs the file at path and verifies it is an image that may be
// published.
func inspectFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening media file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("reading media file info: %w", err)
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(f, sniff)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", 0, fmt.Errorf("reading media file: %w", err)
	}

	mimeType, err := checkSniff(sniff[:n])
	if err != nil {
		return "", 0, err
	}
	return mimeType, info.Size(), nil
}

func checkSniff(sniff []byte) (string, error) {
	if len(sniff) == 0 {
		return "", ErrEmptyFile
	}
	if isExecutableSignature(sniff) {
		return "", ErrExecutableFile
	}

	mimeType := detectMimeType(sniff)
	if !isAllowedMimeType(mimeType) {
		return "", ErrDisallowedType
	}
	return mimeType, nil
}

// newObjectKey spreads objects over year/month directories.
func newObjectKey(mimeType string) string {
	d := time.Now().UTC()
	return fmt.Sprintf("%d/%02d/%s%s", d.Year(), d.Month(), uuid.NewString(), extensionFor(mimeType))
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ""
	}
}

func detectMimeType(sniff []byte) string {
	if len(sniff) == 0 {
		return "application/octet-stream"
	}

	return trimMimeParams(http.DetectContentType(sniff))
}

func isExecutableSignature(sniff []byte) bool {
	if len(sniff) < 2 {
		return false
	}

	if sniff[0] == 'M' && sniff[1] == 'Z' {
		return true // PE/COFF (Windows)
	}
	if len(sniff) >= 4 {
		if bytes.Equal(sniff[:4], []byte{0x7f, 'E', 'L', 'F'}) {
			return true // ELF
		}

		machoMagics := [][]byte{
			{0xfe, 0xed, 0xfa, 0xce},
			{0xce, 0xfa, 0xed, 0xfe},
			{0xfe, 0xed, 0xfa, 0xcf},
			{0xcf, 0xfa, 0xed, 0xfe},
			{0xca, 0xfe, 0xba, 0xbe},
			{0xbe, 0xba, 0xfe, 0xca},
		}
		for _, magic := range machoMagics {
			if bytes.Equal(sniff[:4], magic) {
				return true
			}
		}
	}

	if sniff[0] == '#' && sniff[1] == '!' {
		return true // shebang scripts
	}

	return false
}

func trimMimeParams(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}

// Profile media is images only; SVG is excluded because it can carry script.
func isAllowedMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mimeType, "image/")
}
