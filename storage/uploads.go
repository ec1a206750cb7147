package storage

import (
	"bufio"
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const sniffLength = 512

// UploadStore writes message attachments to a local directory served under
// urlPrefix. Stored names are random so client file names never reach the disk.
type UploadStore struct {
	log       *slog.Logger
	dir       string
	urlPrefix string
	maxSize   int64
}

func NewUploadStore(log *slog.Logger, dir, urlPrefix string, maxSize int64) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &UploadStore{log: log, dir: dir, urlPrefix: urlPrefix, maxSize: maxSize}, nil
}

func (s *UploadStore) Dir() string {
	return s.dir
}

// Save sniffs the content type from the first bytes, then streams the whole
// content to disk. Content larger than maxSize is rejected and removed.
func (s *UploadStore) Save(originalName string, content io.Reader) (domain.Upload, error) {
	reader := bufio.NewReaderSize(content, sniffLength)
	// Peek returns what is available when the content is shorter
	head, err := reader.Peek(sniffLength)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return domain.Upload{}, err
	}
	mime := mimetype.Detect(head)

	name := uuid.NewString() + mime.Extension()
	target := filepath.Join(s.dir, name)
	file, err := os.Create(target)
	if err != nil {
		return domain.Upload{}, err
	}
	defer file.Close()

	// One extra byte tells an exact fit from an overflow
	written, err := io.Copy(file, io.LimitReader(reader, s.maxSize+1))
	if err == nil && written > s.maxSize {
		err = errors.ErrUploadTooLarge
	}
	if err != nil {
		_ = os.Remove(target)
		return domain.Upload{}, err
	}

	s.log.Debug("Upload stored",
		"file_name", originalName,
		"stored_as", name,
		"mime_type", mime.String(),
		"size", written)
	return domain.Upload{
		URL:      path.Join(s.urlPrefix, name),
		Name:     filepath.Base(originalName),
		Size:     written,
		MimeType: mime.String(),
	}, nil
}

// Remove deletes a stored upload, for instance when the message carrying it
// was rejected.
func (s *UploadStore) Remove(upload domain.Upload) error {
	name := path.Base(upload.URL)
	if name == "." || name == "/" {
		return fmt.Errorf("%w: no stored file in %q", errors.ErrInvalidRequest, upload.URL)
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	s.log.Debug("Upload removed", "stored_as", name)
	return nil
}

// IsAudio tells whether an upload must be sent as a voice message.
func IsAudio(mimeType string) bool {
	return strings.HasPrefix(mimeType, "audio/")
}
