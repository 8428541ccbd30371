package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore загружает вложения в Cloudinary с resource_type=auto.
type CloudinaryStore struct {
	cld *cloudinary.Cloudinary
	now func() time.Time
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret string) (*CloudinaryStore, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary credentials are not set")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryStore{cld: cld, now: time.Now}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, folder string, data []byte, contentType string) (Attachment, error) {
	if len(data) == 0 {
		return Attachment{}, ErrEmpty
	}
	resp, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     ObjectName(PrefixFor(folder), s.now()),
		Folder:       folder,
		ResourceType: "auto",
	})
	if err != nil {
		return Attachment{}, fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp.Error.Message != "" {
		return Attachment{}, fmt.Errorf("cloudinary upload: %s", resp.Error.Message)
	}
	rt := resp.ResourceType
	if rt == "" {
		rt = ResourceType(contentType)
	}
	return Attachment{URL: resp.SecureURL, Key: resp.PublicID, ResourceType: rt}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, a Attachment) error {
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     a.Key,
		ResourceType: a.ResourceType,
	})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy: %s", resp.Error.Message)
	}
	return nil
}
