package attachments

import (
	"context"
	"errors"
	"sync"
	"testing"

	"kanban-scheduler/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStorage struct {
	mu       sync.Mutex
	uploads  []string
	deletes  []string
	failFile map[string]error
	failURL  map[string]error
}

func newStubStorage() *stubStorage {
	return &stubStorage{
		failFile: make(map[string]error),
		failURL:  make(map[string]error),
	}
}

func (s *stubStorage) UploadAttachment(_ context.Context, _ string, file models.Attachment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFile[file.Filename]; err != nil {
		return "", err
	}
	url := "https://storage.test/" + file.Filename
	s.uploads = append(s.uploads, url)
	return url, nil
}

func (s *stubStorage) DeleteAttachment(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, url)
	return s.failURL[url]
}

func TestUploadAllToleraFalhaIndividual(t *testing.T) {
	storage := newStubStorage()
	storage.failFile["quebrado.png"] = errors.New("falha de rede")
	manager := NewManager(storage)

	files := []models.Attachment{
		{Filename: "a.png", ContentType: "image/png"},
		{Filename: "quebrado.png", ContentType: "image/png"},
		{Filename: "b.jpg", ContentType: "image/jpeg"},
	}

	results := manager.UploadAll(context.Background(), "user-1", files)
	require.Len(t, results, 3)

	// Resultado por item, na ordem dos arquivos
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)

	urls := SucceededURLs(results)
	assert.Equal(t, []string{"https://storage.test/a.png", "https://storage.test/b.jpg"}, urls)
}

func TestDeleteAllMelhorEsforco(t *testing.T) {
	storage := newStubStorage()
	storage.failURL["https://storage.test/ruim.png"] = errors.New("objeto travado")
	manager := NewManager(storage)

	// Nenhum erro é propagado; todas as URLs são tentadas
	manager.DeleteAll(context.Background(), []string{
		"https://storage.test/ok.png",
		"https://storage.test/ruim.png",
		"",
		"https://storage.test/outra.png",
	})

	storage.mu.Lock()
	defer storage.mu.Unlock()
	assert.ElementsMatch(t, []string{
		"https://storage.test/ok.png",
		"https://storage.test/ruim.png",
		"https://storage.test/outra.png",
	}, storage.deletes)
}

func TestMergeImageURLsPreservaOrdem(t *testing.T) {
	existing := []string{"u1", "u2", "u3"}
	removed := []string{"u2"}
	added := []string{"u4", "u5"}

	merged := MergeImageURLs(existing, removed, added)
	assert.Equal(t, []string{"u1", "u3", "u4", "u5"}, merged)

	// Sem remoções nem adições, a lista volta igual
	assert.Equal(t, []string{"u1", "u2", "u3"}, MergeImageURLs(existing, nil, nil))

	// Entrada não é modificada
	assert.Equal(t, []string{"u1", "u2", "u3"}, existing)
}
