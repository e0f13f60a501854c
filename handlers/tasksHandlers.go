package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"kanban-scheduler/dragdrop"
	"kanban-scheduler/models"
	"kanban-scheduler/utilities"
	"kanban-scheduler/view"

	"github.com/gorilla/mux"
)

const maxUploadMemory = 32 << 20

// readAttachments extrai os arquivos do campo "files" de um form multipart.
func readAttachments(r *http.Request) ([]models.Attachment, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var files []models.Attachment
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, models.Attachment{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// CreateTaskHandler cria uma nova tarefa para o usuário autenticado.
// Aceita JSON puro ou multipart com o campo "task" (JSON) e arquivos em "files".
func CreateTaskHandler(w http.ResponseWriter, r *http.Request) {
	utilities.LogDebug("Iniciando criação de nova tarefa")

	store, err := userStore(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input models.CreateTaskInput
	var files []models.Attachment
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			http.Error(w, "Form multipart inválido", http.StatusBadRequest)
			return
		}
		if err := json.Unmarshal([]byte(r.FormValue("task")), &input); err != nil {
			utilities.LogError(err, "Erro ao decodificar JSON da tarefa")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if files, err = readAttachments(r); err != nil {
			http.Error(w, "Erro ao ler arquivos enviados", http.StatusBadRequest)
			return
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			utilities.LogError(err, "Erro ao decodificar JSON da tarefa")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	taskID, done, err := store.Add(input, files)
	if err != nil {
		utilities.LogError(err, "Validação falhou ao criar tarefa")
		writeError(w, err)
		return
	}
	if err := <-done; err != nil {
		writeError(w, err)
		return
	}

	utilities.LogInfo("Tarefa criada com sucesso: %s (ID: %s)", input.Title, taskID)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": taskID})
}

// ListTasksHandler devolve o snapshot bruto do cache do usuário.
func ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	store, err := userStore(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snap := store.Snapshot()
	resp := map[string]interface{}{
		"tasks":   snap.Tasks,
		"loading": snap.Loading,
	}
	if snap.Err != nil {
		resp["error"] = snap.Err.Error()
	}
	json.NewEncoder(w).Encode(resp)
}

// TaskViewHandler deriva a visão agrupada por status a partir do snapshot,
// aplicando os filtros dos parâmetros de query.
func TaskViewHandler(w http.ResponseWriter, r *http.Request) {
	store, err := userStore(r)
	if err != nil {
		writeError(w, err)
		return
	}

	queryParams := r.URL.Query()
	filter := models.FilterSpec{
		Category:    queryParams.Get("category"),
		DueDate:     queryParams.Get("due_date"),
		SearchQuery: queryParams.Get("search"),
		Sort:        queryParams.Get("sort"),
	}

	snap := store.Snapshot()
	groups := view.DeriveView(snap.Tasks, filter)

	utilities.LogDebug("Visão derivada para %s: %d/%d/%d tarefas",
		userID(r), len(groups.Todo), len(groups.InProgress), len(groups.Completed))
	json.NewEncoder(w).Encode(groups)
}

// GetTaskHandler devolve uma tarefa do snapshot do usuário.
func GetTaskHandler(w http.ResponseWriter, r *http.Request) {
	store, err := userStore(r)
	if err != nil {
		writeError(w, err)
		return
	}

	taskID := mux.Vars(r)["task_id"]
	for _, t := range store.Snapshot().Tasks {
		if t.ID == taskID {
			json.NewEncoder(w).Encode(t)
			return
		}
	}
	http.Error(w, "Tarefa não encontrada", http.StatusNotFound)
}

// updateRequest é o corpo JSON da atualização de tarefa.
type updateRequest struct {
	Updates          models.UpdateTaskInput `json:"updates"`
	DeletedImageUrls []string               `json:"deleted_image_urls"`
}

// UpdateTaskHandler atualiza uma tarefa existente. Aceita JSON puro ou
// multipart com "updates" (JSON), arquivos novos em "files" e URLs removidas
// em "deleted_image_urls".
func UpdateTaskHandler(w http.ResponseWriter, r *http.Request) {
	utilities.LogDebug("Iniciando atualização de tarefa")

	store, err := userStore(r)
	if err != nil {
		writeError(w, err)
		return
	}
	taskID := mux.Vars(r)["task_id"]

	var req updateRequest
	var files []models.Attachment
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			http.Error(w, "Form multipart inválido", http.StatusBadRequest)
			return
		}
		if raw := r.FormValue("updates"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Updates); err != nil {
				utilities.LogError(err, "Erro ao decodificar JSON de atualização")
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		req.DeletedImageUrls = r.MultipartForm.Value["deleted_image_urls"]
		if files, err = readAttachments(r); err != nil {
			http.Error(w, "Erro ao ler arquivos enviados", http.StatusBadRequest)
			return
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utilities.LogError(err, "Erro ao decodificar JSON de atualização")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if req.Updates.Empty() && len(files) == 0 && len(req.DeletedImageUrls) == 0 {
		http.Error(w, "Nenhum campo para atualizar", http.StatusBadRequest)
		return
	}

	done, err := store.Update(taskID, req.Updates, files, req.DeletedImageUrls)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := <-done; err != nil {
		writeError(w, err)
		return
	}

	utilities.LogInfo("Tarefa atualizada com sucesso: %s", taskID)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTaskHandler remove uma tarefa. A remoção local é definitiva; falha na
// deleção remota é reportada, mas a tarefa não ressuscita no cache.
func DeleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	utilities.LogDebug("Iniciando exclusão de tarefa")

	store, err := userStore(r)
	if err != nil {
		writeError(w, err)
		return
	}
	taskID := mux.Vars(r)["task_id"]

	done, err := store.Delete(taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := <-done; err != nil {
		writeError(w, err)
		return
	}

	utilities.LogInfo("Tarefa excluída com sucesso: %s", taskID)
	w.WriteHeader(http.StatusNoContent)
}

// bulkOutcomeJSON serializa o desfecho individual de um id.
type bulkOutcomeJSON struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error,omitempty"`
}

func encodeBulkReport(w http.ResponseWriter, report models.BulkReport) {
	outcomes := make([]bulkOutcomeJSON, len(report.Outcomes))
	failed := 0
	for i, o := range report.Outcomes {
		outcomes[i] = bulkOutcomeJSON{TaskID: o.TaskID}
		if o.Err != nil {
			outcomes[i].Error = o.Err.Error()
			failed++
		}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"op":       report.Op,
		"failed":   failed,
		"outcomes": outcomes,
	})
}

// BulkUpdateTasksHandler aplica a mesma atualização a um conjunto de ids e
// devolve o relatório com o desfecho individual de cada id.
func BulkUpdateTasksHandler(w http.ResponseWriter, r *http.Request) {
	store, err := userStore(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		IDs     []string               `json:"ids"`
		Updates models.UpdateTaskInput `json:"updates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		http.Error(w, "Nenhum id informado", http.StatusBadRequest)
		return
	}

	reportCh, err := store.BulkUpdate(req.IDs, req.Updates)
	if err != nil {
		writeError(w, err)
		return
	}
	report := <-reportCh

	utilities.LogInfo("Bulk-update concluído para %d ids (%d falhas)",
		len(report.Outcomes), len(report.Failed()))
	encodeBulkReport(w, report)
}

// BulkDeleteTasksHandler remove um conjunto de ids com desfecho independente
// por id.
func BulkDeleteTasksHandler(w http.ResponseWriter, r *http.Request) {
	store, err := userStore(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		http.Error(w, "Nenhum id informado", http.StatusBadRequest)
		return
	}

	reportCh, err := store.BulkDelete(req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	report := <-reportCh

	utilities.LogInfo("Bulk-delete concluído para %d ids (%d falhas)",
		len(report.Outcomes), len(report.Failed()))
	encodeBulkReport(w, report)
}

// MoveTaskHandler interpreta um drag-and-drop entre grupos de status.
// Soltar no grupo de origem não gera chamada alguma ao store.
func MoveTaskHandler(w http.ResponseWriter, r *http.Request) {
	store, err := userStore(r)
	if err != nil {
		writeError(w, err)
		return
	}
	taskID := mux.Vars(r)["task_id"]

	var req struct {
		SourceStatus models.TaskStatus `json:"source_status"`
		TargetStatus models.TaskStatus `json:"target_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	coordinator := dragdrop.NewCoordinator(store)
	done, err := coordinator.OnDrop(taskID, req.SourceStatus, req.TargetStatus)
	if err != nil {
		writeError(w, err)
		return
	}
	if done == nil {
		// No-op: origem e destino iguais
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := <-done; err != nil {
		writeError(w, err)
		return
	}

	utilities.LogInfo("Tarefa %s movida para %s", taskID, req.TargetStatus)
	w.WriteHeader(http.StatusNoContent)
}
