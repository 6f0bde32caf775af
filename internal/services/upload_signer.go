package services

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidUploadParameters is returned for parameters that cannot be signed.
var ErrInvalidUploadParameters = errors.New("invalid upload parameters")

// SignatureSource signs image upload parameters.
type SignatureSource interface {
	ImageSignature(ctx context.Context, params map[string]string) (string, error)
}

// UploadSigner authorizes direct image uploads to the image host. The upload
// widget hands over parameters of mixed types; the backend signs strings.
type UploadSigner struct {
	source SignatureSource
}

func NewUploadSigner(source SignatureSource) *UploadSigner {
	return &UploadSigner{source: source}
}

// Sign stringifies every parameter and returns the backend's signature.
func (s *UploadSigner) Sign(ctx context.Context, params map[string]any) (string, error) {
	if len(params) == 0 {
		return "", fmt.Errorf("%w: none given", ErrInvalidUploadParameters)
	}
	strParams := make(map[string]string, len(params))
	for key, value := range params {
		if value == nil {
			return "", fmt.Errorf("%w: %q is null", ErrInvalidUploadParameters, key)
		}
		strParams[key] = stringify(value)
	}
	signature, err := s.source.ImageSignature(ctx, strParams)
	if err != nil {
		return "", fmt.Errorf("sign upload: %w", err)
	}
	return signature, nil
}

// stringify formats JSON-decoded values the way the upload widget expects:
// whole numbers without a fraction or exponent.
func stringify(value any) string {
	if f, ok := value.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(value)
}
