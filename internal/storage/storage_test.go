package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sarpras-lapor/apiserver/config"
)

func TestOpenDisabled(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != nil {
		t.Fatal("expected nil storage when backend is empty")
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{name: "unknown backend", cfg: config.StorageConfig{Backend: "s3"}},
		{name: "minio without credentials", cfg: config.StorageConfig{Backend: "minio", Minio: config.MinioConfig{Endpoint: "localhost:9000", Bucket: "b"}}},
		{name: "minio without bucket", cfg: config.StorageConfig{Backend: "minio", Minio: config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}}},
		{name: "gcs without bucket", cfg: config.StorageConfig{Backend: "gcs"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(context.Background(), tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	s := NewStorage(NewMemory("photos"))
	ctx := context.Background()

	if err := s.Put(ctx, "laporan/a.png", strings.NewReader("png-bytes"), 9, "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}
	obj, err := s.Get(ctx, "laporan/a.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer obj.Body.Close()
	data, _ := io.ReadAll(obj.Body)
	if string(data) != "png-bytes" || obj.ContentType != "image/png" || obj.Size != 9 {
		t.Fatalf("unexpected object %q %q %d", data, obj.ContentType, obj.Size)
	}

	if err := s.Delete(ctx, "laporan/a.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "laporan/a.png"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if s.Bucket() != "photos" {
		t.Fatalf("unexpected bucket %q", s.Bucket())
	}
}
