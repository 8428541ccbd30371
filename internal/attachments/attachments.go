// Package attachments хранит бинарные вложения (фото товара, аудио чата) и отдаёт публичные URL.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Папки и префиксы имён, как их раскладывал клиент.
const (
	FolderProductImages = "images/PRODUCT"
	FolderAudio         = "audio"

	PrefixImage = "uploaded_image"
	PrefixAudio = "audio"
)

var ErrEmpty = errors.New("attachment is empty")

// Attachment - результат загрузки. Key нужен для удаления.
type Attachment struct {
	URL          string `json:"url"`
	Key          string `json:"key"`
	ResourceType string `json:"resourceType"`
}

type Store interface {
	Upload(ctx context.Context, folder string, data []byte, contentType string) (Attachment, error)
	Delete(ctx context.Context, a Attachment) error
}

// ObjectName строит имя <prefix>_<unixMillis>_<random8>.
// Случайный суффикс исключает коллизии без блокировок.
func ObjectName(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), suffix)
}

// PrefixFor выбирает префикс имени по папке.
func PrefixFor(folder string) string {
	if strings.HasPrefix(folder, FolderAudio) {
		return PrefixAudio
	}
	return PrefixImage
}

// ResourceType - тип ресурса в терминах Cloudinary.
func ResourceType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "audio/"), strings.HasPrefix(contentType, "video/"):
		// Cloudinary хранит аудио как video
		return "video"
	default:
		return "raw"
	}
}

// instrumented считает загрузки по исходу.
type instrumented struct {
	Store
	uploads *prometheus.CounterVec
}

// Instrument оборачивает Store счётчиком attachment_uploads_total{outcome}.
func Instrument(s Store, uploads *prometheus.CounterVec) Store {
	if uploads == nil {
		return s
	}
	return &instrumented{Store: s, uploads: uploads}
}

func (i *instrumented) Upload(ctx context.Context, folder string, data []byte, contentType string) (Attachment, error) {
	a, err := i.Store.Upload(ctx, folder, data, contentType)
	outcome := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	i.uploads.WithLabelValues(outcome).Inc()
	return a, err
}
