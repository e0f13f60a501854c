package firebase

import (
	"strings"
	"testing"

	"kanban-scheduler/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAttachmentRejeitaArquivoGrande(t *testing.T) {
	file := models.Attachment{
		Filename:    "enorme.png",
		ContentType: "image/png",
		Data:        make([]byte, maxAttachmentSize+1),
	}

	err := validateAttachment(file)
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "file", vErr.Field)
	assert.True(t, strings.Contains(vErr.Reason, "5MB"))
}

func TestValidateAttachmentRejeitaTipoNaoPermitido(t *testing.T) {
	file := models.Attachment{
		Filename:    "planilha.pdf",
		ContentType: "application/pdf",
		Data:        []byte("conteúdo"),
	}

	err := validateAttachment(file)
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestValidateAttachmentAceitaImagensPermitidas(t *testing.T) {
	for _, ct := range []string{"image/jpeg", "image/png", "image/webp"} {
		file := models.Attachment{Filename: "foto", ContentType: ct, Data: []byte("img")}
		assert.NoError(t, validateAttachment(file), ct)
	}
}

func TestObjectFromURL(t *testing.T) {
	g := &AttachmentGateway{bucketName: "kanban-doc"}

	object, err := g.objectFromURL("https://storage.googleapis.com/kanban-doc/uid-1/123-abc.png")
	require.NoError(t, err)
	assert.Equal(t, "uid-1/123-abc.png", object)

	_, err = g.objectFromURL("https://storage.googleapis.com/outro-bucket/uid-1/123-abc.png")
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = g.objectFromURL("https://storage.googleapis.com/kanban-doc/")
	require.Error(t, err)
}
