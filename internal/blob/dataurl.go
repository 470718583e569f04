package blob

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// DataURLStore encodes the blob itself into the reference as a data URL.
type DataURLStore struct{}

// Put returns data encoded as "data:<type>;base64,<payload>".
func (DataURLStore) Put(ctx context.Context, data []byte, meta Metadata) (string, error) {
	if err := check(ctx, data); err != nil {
		return "", err
	}
	return "data:" + contentType(data, meta) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Get decodes a data URL reference.
func (DataURLStore) Get(_ context.Context, ref string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data URL reference")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URL reference")
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return nil, "", fmt.Errorf("data URL reference is not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode data URL: %w", err)
	}
	return data, mime, nil
}
