package services

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sarpras-lapor/apiserver/internal/storage"
)

const (
	photoKeyPrefix     = "laporan/"
	photoSniffLen      = 512
	DefaultMaxPhotoLen = 5 << 20
)

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// PhotoStore is the object storage used for report photos.
type PhotoStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// Photo is an uploaded report photo.
type Photo struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// photoUploader validates and stores report photos. A nil store rejects
// every upload.
type photoUploader struct {
	store  PhotoStore
	maxLen int64
}

// save stores photo under a fresh key and returns the key. The content
// type is sniffed from the data, not taken from the client.
func (u photoUploader) save(ctx context.Context, photo *Photo) (string, error) {
	if u.store == nil {
		return "", validationError("photo uploads are not enabled")
	}
	if photo.Size <= 0 {
		return "", validationError("foto is empty")
	}
	if photo.Size > u.maxLen {
		return "", validationError("foto must be at most %d bytes", u.maxLen)
	}

	head := make([]byte, photoSniffLen)
	n, err := io.ReadFull(photo.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()
	ext, ok := photoExtensions[contentType]
	if !ok {
		return "", validationError("foto must be a JPEG, PNG, GIF or WebP image")
	}

	key := photoKeyPrefix + uuid.NewString() + ext
	body := io.MultiReader(bytes.NewReader(head), io.LimitReader(photo.Body, photo.Size-int64(n)))
	if err := u.store.Put(ctx, key, body, photo.Size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

func (u photoUploader) remove(ctx context.Context, key string) error {
	if u.store == nil || key == "" {
		return nil
	}
	return u.store.Delete(ctx, key)
}
