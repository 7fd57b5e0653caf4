package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"vidtube/internal/constants"
	"vidtube/internal/media"
)

// multipartMemoryBytes is how much of a multipart body is held in memory
// before net/http spills parts to disk.
const multipartMemoryBytes = 1 << 20

// registerUpload is the multipart shape of POST /users/register. Avatar is
// required by the handler, CoverImage is optional.
type registerUpload struct {
	Avatar     *media.StagedFile
	CoverImage *media.StagedFile
}

// singleUpload is the multipart shape of the avatar and cover image updates.
type singleUpload struct {
	File *media.StagedFile
}

// uploadReader parses multipart requests and stages their files under
// tempDir. Every read returns a cleanup that callers defer; it removes the
// staged files whether the request succeeds or fails.
type uploadReader struct {
	tempDir  string
	maxBytes int64
}

func newUploadReader(tempDir string, maxBytes int64) *uploadReader {
	return &uploadReader{tempDir: tempDir, maxBytes: maxBytes}
}

func (u *uploadReader) readRegister(w http.ResponseWriter, r *http.Request) (*registerUpload, func(), error) {
	var cleanups cleanupStack
	if err := u.parse(w, r, 2, &cleanups); err != nil {
		return nil, cleanups.run, err
	}

	avatar, err := u.stageField(r, constants.FieldAvatar, &cleanups)
	if err != nil {
		return nil, cleanups.run, err
	}
	coverImage, err := u.stageField(r, constants.FieldCoverImage, &cleanups)
	if err != nil {
		return nil, cleanups.run, err
	}

	return &registerUpload{Avatar: avatar, CoverImage: coverImage}, cleanups.run, nil
}

func (u *uploadReader) readSingle(w http.ResponseWriter, r *http.Request, field string) (*singleUpload, func(), error) {
	var cleanups cleanupStack
	if err := u.parse(w, r, 1, &cleanups); err != nil {
		return nil, cleanups.run, err
	}

	file, err := u.stageField(r, field, &cleanups)
	if err != nil {
		return nil, cleanups.run, err
	}
	if file == nil {
		return nil, cleanups.run, badRequest(fmt.Sprintf("%s file is missing", field))
	}

	return &singleUpload{File: file}, cleanups.run, nil
}

func (u *uploadReader) parse(w http.ResponseWriter, r *http.Request, files int, cleanups *cleanupStack) error {
	if u.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(files)*u.maxBytes+multipartMemoryBytes)
	}

	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		if isBodyTooLargeError(err) {
			return payloadTooLarge("File exceeds maximum upload size")
		}
		return badRequest("Invalid multipart upload")
	}

	cleanups.push(func() {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	})
	return nil
}

// stageField returns nil without error when the field carries no file.
func (u *uploadReader) stageField(r *http.Request, field string, cleanups *cleanupStack) (*media.StagedFile, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, badRequest(fmt.Sprintf("Invalid %s file", field))
	}
	defer file.Close()

	staged, cleanup, err := media.Stage(u.tempDir, file, u.maxBytes)
	cleanups.push(cleanup)
	if err != nil {
		return nil, stageError(err)
	}
	return staged, nil
}

func stageError(err error) error {
	switch {
	case errors.Is(err, media.ErrFileTooLarge):
		return payloadTooLarge("File exceeds maximum upload size")
	case errors.Is(err, media.ErrExecutableFile):
		return badRequest("Executable files are not allowed")
	case errors.Is(err, media.ErrDisallowedType):
		return badRequest("Unsupported file type, only images are allowed")
	case errors.Is(err, media.ErrEmptyFile):
		return badRequest("Uploaded file is empty")
	default:
		return internalError(fmt.Errorf("staging upload: %w", err))
	}
}

// uploadError maps a media host failure for the named asset.
func uploadError(err error, what string) error {
	if errors.Is(err, media.ErrDisallowedType) || errors.Is(err, media.ErrExecutableFile) {
		return stageError(err)
	}
	return &APIError{
		Status:  http.StatusInternalServerError,
		Message: fmt.Sprintf("Error while uploading %s", what),
		Err:     err,
	}
}

func isBodyTooLargeError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "request body too large")
}

type cleanupStack []func()

func (c *cleanupStack) push(fn func()) {
	*c = append(*c, fn)
}

// run calls the cleanups in reverse order of registration.
func (c *cleanupStack) run() {
	for i := len(*c) - 1; i >= 0; i-- {
		(*c)[i]()
	}
	*c = nil
}
