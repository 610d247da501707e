// Package storage keeps uploaded documents behind an opaque handle.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/config"
)

// Kind restricts which documents a store call accepts
type Kind string

const (
	KindAny   Kind = "any"
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
)

var (
	ErrEmpty          = errors.New("file is empty")
	ErrTooLarge       = errors.New("file exceeds the maximum size")
	ErrKindNotAllowed = errors.New("file type is not allowed")
	ErrNotFound       = errors.New("file not found")
)

// Store persists blobs and hands back a handle that Load and Delete accept
type Store interface {
	Store(ctx context.Context, blob []byte, maxSize int64, kind Kind) (string, error)
	Load(ctx context.Context, handle string) ([]byte, error)
	Delete(ctx context.Context, handle string) error
}

// New selects the configured backend
func New(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.LocalPath)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// Validate checks size and content kind and returns the detected MIME type
func Validate(blob []byte, maxSize int64, kind Kind) (*mimetype.MIME, error) {
	if len(blob) == 0 {
		return nil, ErrEmpty
	}
	if maxSize > 0 && int64(len(blob)) > maxSize {
		return nil, ErrTooLarge
	}

	mime := mimetype.Detect(blob)
	switch kind {
	case KindPDF:
		if !mime.Is("application/pdf") {
			return nil, ErrKindNotAllowed
		}
	case KindImage:
		if !isImage(mime) {
			return nil, ErrKindNotAllowed
		}
	}
	return mime, nil
}

func isImage(mime *mimetype.MIME) bool {
	for m := mime; m != nil; m = m.Parent() {
		if m.Is("image/png") || m.Is("image/jpeg") || m.Is("image/gif") || m.Is("image/webp") {
			return true
		}
	}
	return false
}

func newHandle(mime *mimetype.MIME) string {
	return uuid.NewString() + mime.Extension()
}

// ContentType returns the detected MIME type of a stored blob
func ContentType(blob []byte) string {
	return mimetype.Detect(blob).String()
}
