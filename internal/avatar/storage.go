// Package avatar stores uploaded profile images and returns the public
// reference clients render. Two backends exist: local disk (served under
// /uploads) and an S3-compatible bucket.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rmacedo/salachat-server/internal/config"
)

// ErrUnsupportedType is returned for uploads that are not PNG, JPEG or GIF.
var ErrUnsupportedType = errors.New("unsupported image type")

// Storage persists avatar images.
type Storage interface {
	// Save stores the image and returns the reference clients use to
	// display it.
	Save(ctx context.Context, contentType string, r io.Reader) (string, error)
	// Remove deletes a previously saved image. Unknown references are a
	// no-op.
	Remove(ctx context.Context, ref string) error
}

// extByContentType maps the accepted image MIME types to file extensions.
var extByContentType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
}

// New builds the storage backend selected by the configuration.
func New(ctx context.Context, cfg config.Config) (Storage, error) {
	switch cfg.AvatarBackend {
	case "", "disk":
		return NewDisk(cfg.UploadsDir)
	case "s3":
		return NewS3(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown avatar backend %q", cfg.AvatarBackend)
	}
}
