package media

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// StagedFile is an upload copied to local temp storage, ready for an Uploader.
type StagedFile struct {
	Path string
}

// Stage copies src into a new file under dir after checking it is an allowed
// image no larger than maxBytes. The returned cleanup removes the file and is
// safe to call more than once; callers defer it so the temp file goes away on
// success and failure alike.
func Stage(dir string, src io.Reader, maxBytes int64) (*StagedFile, func(), error) {
	noop := func() {}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, noop, fmt.Errorf("creating temp directory: %w", err)
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(src, sniff)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, noop, fmt.Errorf("reading upload: %w", err)
	}
	sniff = sniff[:n]

	mimeType, err := checkSniff(sniff)
	if err != nil {
		return nil, noop, err
	}

	tmpFile, err := os.CreateTemp(dir, "upload-*"+extensionFor(mimeType))
	if err != nil {
		return nil, noop, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	fullReader := io.MultiReader(bytes.NewReader(sniff), src)
	written, err := io.Copy(tmpFile, io.LimitReader(fullReader, maxBytes+1))
	closeErr := tmpFile.Close()
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("writing temp file: %w", err)
	}
	if closeErr != nil {
		cleanup()
		return nil, noop, fmt.Errorf("closing temp file: %w", closeErr)
	}
	if written > maxBytes {
		cleanup()
		return nil, noop, ErrFileTooLarge
	}

	return &StagedFile{Path: tmpPath}, cleanup, nil
}
