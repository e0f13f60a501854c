package attachments

import (
	"context"
	"fmt"
	"sync"

	"kanban-scheduler/models"
	"kanban-scheduler/utilities"
)

// Storage é o contrato mínimo do armazenamento de objetos usado pelo
// gerenciador de anexos.
type Storage interface {
	UploadAttachment(ctx context.Context, uid string, file models.Attachment) (string, error)
	DeleteAttachment(ctx context.Context, url string) error
}

// Manager coordena o ciclo de vida dos anexos de uma tarefa: uploads em
// paralelo com tolerância a falha individual e remoções em melhor esforço.
type Manager struct {
	storage Storage
}

func NewManager(storage Storage) *Manager {
	return &Manager{storage: storage}
}

// UploadResult é o resultado individual do envio de um arquivo.
type UploadResult struct {
	Filename string
	URL      string
	Err      error
}

// UploadAll envia os arquivos em paralelo e coleta o resultado de cada um.
// A falha de um arquivo (inclusive de validação) não interrompe os demais
// nem a mutação da tarefa dona; ela é registrada e reportada por item.
func (m *Manager) UploadAll(ctx context.Context, uid string, files []models.Attachment) []UploadResult {
	results := make([]UploadResult, len(files))
	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, file models.Attachment) {
			defer wg.Done()
			url, err := m.storage.UploadAttachment(ctx, uid, file)
			if err != nil {
				utilities.LogError(err, fmt.Sprintf("Falha ao enviar anexo %s", file.Filename))
			}
			results[i] = UploadResult{Filename: file.Filename, URL: url, Err: err}
		}(i, file)
	}
	wg.Wait()
	return results
}

// SucceededURLs extrai, na ordem dos arquivos, as URLs dos envios que deram certo.
func SucceededURLs(results []UploadResult) []string {
	var urls []string
	for _, r := range results {
		if r.Err == nil && r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls
}

// DeleteAll remove as URLs em paralelo, em regime de melhor esforço: falhas
// são apenas registradas. Deve ser chamado somente depois que o documento da
// tarefa foi atualizado/removido com sucesso, para nunca deixar uma tarefa
// apontando para anexo inexistente.
func (m *Manager) DeleteAll(ctx context.Context, urls []string) {
	var wg sync.WaitGroup
	for _, url := range urls {
		if url == "" {
			continue
		}
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			if err := m.storage.DeleteAttachment(ctx, url); err != nil {
				utilities.LogError(err, fmt.Sprintf("Falha ao remover anexo %s", url))
			}
		}(url)
	}
	wg.Wait()
}

// MergeImageURLs calcula a lista final de anexos de uma atualização:
// (existentes − removidas) ∪ novas, preservando a ordem relativa das
// existentes e acrescentando as novas ao final.
func MergeImageURLs(existing, removed, added []string) []string {
	removedSet := make(map[string]bool, len(removed))
	for _, url := range removed {
		removedSet[url] = true
	}

	merged := make([]string, 0, len(existing)+len(added))
	for _, url := range existing {
		if !removedSet[url] {
			merged = append(merged, url)
		}
	}
	merged = append(merged, added...)
	return merged
}
