package firebase

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"kanban-scheduler/models"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const (
	// Limite de 5 MiB por arquivo
	maxAttachmentSize = 5 << 20

	publicURLPrefix = "https://storage.googleapis.com/"
)

var allowedAttachmentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// AttachmentGateway armazena anexos de tarefas no bucket do projeto e devolve
// URLs públicas estáveis.
type AttachmentGateway struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

func NewAttachmentGateway(bucket *gcs.BucketHandle, bucketName string) *AttachmentGateway {
	return &AttachmentGateway{bucket: bucket, bucketName: bucketName}
}

// validateAttachment rejeita o arquivo antes de qualquer chamada de rede.
func validateAttachment(file models.Attachment) error {
	if len(file.Data) > maxAttachmentSize {
		return &models.ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("arquivo %s excede o limite de 5MB", file.Filename),
		}
	}
	if !allowedAttachmentTypes[file.ContentType] {
		return &models.ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("tipo de arquivo %s não permitido; apenas JPEG, PNG e WebP", file.ContentType),
		}
	}
	return nil
}

// UploadAttachment valida e envia o arquivo, retornando a URL pública.
// O nome do objeto leva o uid e um sufixo único para evitar sobrescrita.
func (g *AttachmentGateway) UploadAttachment(ctx context.Context, uid string, file models.Attachment) (string, error) {
	if err := validateAttachment(file); err != nil {
		return "", err
	}

	ext := strings.ToLower(path.Ext(file.Filename))
	objectName := fmt.Sprintf("%s/%d-%s%s", uid, time.Now().UnixMilli(), uuid.NewString()[:8], ext)

	w := g.bucket.Object(objectName).NewWriter(ctx)
	w.ContentType = file.ContentType
	w.CacheControl = "public, max-age=3600"
	if _, err := w.Write(file.Data); err != nil {
		w.Close()
		return "", &models.StorageError{Op: "uploadAttachment", Err: err}
	}
	if err := w.Close(); err != nil {
		return "", &models.StorageError{Op: "uploadAttachment", Err: err}
	}

	return publicURLPrefix + g.bucketName + "/" + objectName, nil
}

// DeleteAttachment remove o objeto apontado pela URL pública.
func (g *AttachmentGateway) DeleteAttachment(ctx context.Context, url string) error {
	objectName, err := g.objectFromURL(url)
	if err != nil {
		return err
	}
	if err := g.bucket.Object(objectName).Delete(ctx); err != nil {
		return &models.StorageError{Op: "deleteAttachment", Err: err}
	}
	return nil
}

// objectFromURL extrai o nome do objeto a partir da URL pública do bucket.
func (g *AttachmentGateway) objectFromURL(url string) (string, error) {
	prefix := publicURLPrefix + g.bucketName + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", &models.ValidationError{
			Field:  "url",
			Reason: fmt.Sprintf("URL %s não pertence ao bucket %s", url, g.bucketName),
		}
	}
	objectName := strings.TrimPrefix(url, prefix)
	if objectName == "" {
		return "", &models.ValidationError{Field: "url", Reason: "URL sem nome de objeto"}
	}
	return objectName, nil
}
