// Package blob stores proof-of-payment images and documents.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// MaxSize is the largest proof of payment accepted, in bytes.
const MaxSize = 5 << 20

// ErrTooLarge is returned when a blob exceeds MaxSize.
var ErrTooLarge = errors.New("proof of payment exceeds 5 MiB")

// ErrEmpty is returned when there is nothing to store.
var ErrEmpty = errors.New("proof of payment is empty")

// Metadata describes a blob being stored.
type Metadata struct {
	// Filename is the uploader's original file name, if any.
	Filename string
	// ContentType is sniffed from the data when empty.
	ContentType string
}

// Store persists blobs and hands back an opaque reference.
type Store interface {
	Put(ctx context.Context, data []byte, meta Metadata) (string, error)
	Get(ctx context.Context, ref string) ([]byte, string, error)
}

func check(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrEmpty
	}
	if len(data) > MaxSize {
		return fmt.Errorf("%w: got %d bytes", ErrTooLarge, len(data))
	}
	return nil
}

func contentType(data []byte, meta Metadata) string {
	if meta.ContentType != "" {
		return meta.ContentType
	}
	return http.DetectContentType(data)
}
