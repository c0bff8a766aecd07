// Package classifier talks to the vision model that identifies a drink in a photo.
// It returns the model's raw JSON answer; interpreting it is the intake adapter's job.
package classifier

import (
	"context"
	"errors"
)

// ImageInput is one photo to classify. Bytes are preferred; URL is used when
// the image is already hosted.
type ImageInput struct {
	Bytes       []byte
	ContentType string
	URL         string
}

// Classifier returns the raw JSON text produced by the vision model.
type Classifier interface {
	Classify(ctx context.Context, img ImageInput) ([]byte, error)
}

// ErrEmptyImage is returned when neither bytes nor a URL are supplied.
var ErrEmptyImage = errors.New("classifier: empty image")

// Func adapts a function to the Classifier interface.
type Func func(ctx context.Context, img ImageInput) ([]byte, error)

func (f Func) Classify(ctx context.Context, img ImageInput) ([]byte, error) { return f(ctx, img) }
