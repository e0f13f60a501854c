package firebase

import (
	"context"
	"fmt"

	"kanban-scheduler/models"
	"kanban-scheduler/utilities"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const tasksSubCollection = "tasks"

// TaskGateway é o gateway de persistência de tarefas sobre o Firestore.
// Os documentos ficam em users/{uid}/tasks/{taskId}. Nenhuma operação é
// repetida automaticamente aqui; a política de retry pertence ao store.
type TaskGateway struct {
	client *firestore.Client
}

func NewTaskGateway(client *firestore.Client) *TaskGateway {
	return &TaskGateway{client: client}
}

func (g *TaskGateway) taskRef(uid, taskID string) *firestore.DocumentRef {
	return g.client.Collection("users").Doc(uid).Collection(tasksSubCollection).Doc(taskID)
}

// CreateTask grava o documento da tarefa com timestamps atribuídos pelo servidor.
func (g *TaskGateway) CreateTask(ctx context.Context, uid string, task models.Task) error {
	data := map[string]interface{}{
		"id":         task.ID,
		"title":      task.Title,
		"status":     task.Status,
		"category":   task.Category,
		"image_urls": task.ImageUrls,
		"created_at": firestore.ServerTimestamp,
		"updated_at": firestore.ServerTimestamp,
	}
	if task.DueDate != nil {
		data["due_date"] = *task.DueDate
	}

	if _, err := g.taskRef(uid, task.ID).Create(ctx, data); err != nil {
		return &models.StorageError{Op: "createTask", Err: err}
	}
	return nil
}

// UpdateTask aplica uma atualização parcial ao documento da tarefa.
// Documento inexistente vira models.ErrNotFound.
func (g *TaskGateway) UpdateTask(ctx context.Context, uid, taskID string, updates models.UpdateTaskInput) error {
	fields := []firestore.Update{
		{Path: "updated_at", Value: firestore.ServerTimestamp},
	}
	if updates.Title != nil {
		fields = append(fields, firestore.Update{Path: "title", Value: *updates.Title})
	}
	if updates.DueDate != nil {
		fields = append(fields, firestore.Update{Path: "due_date", Value: *updates.DueDate})
	}
	if updates.Status != nil {
		fields = append(fields, firestore.Update{Path: "status", Value: *updates.Status})
	}
	if updates.Category != nil {
		fields = append(fields, firestore.Update{Path: "category", Value: *updates.Category})
	}
	if updates.ImageUrls != nil {
		fields = append(fields, firestore.Update{Path: "image_urls", Value: *updates.ImageUrls})
	}

	if _, err := g.taskRef(uid, taskID).Update(ctx, fields); err != nil {
		if status.Code(err) == codes.NotFound {
			return models.ErrNotFound
		}
		return &models.StorageError{Op: "updateTask", Err: err}
	}
	return nil
}

// DeleteTask remove o documento da tarefa. Deletar documento inexistente não
// é erro no Firestore; o contrato aceita esse comportamento.
func (g *TaskGateway) DeleteTask(ctx context.Context, uid, taskID string) error {
	if _, err := g.taskRef(uid, taskID).Delete(ctx); err != nil {
		return &models.StorageError{Op: "deleteTask", Err: err}
	}
	return nil
}

// ListTasks devolve todas as tarefas do usuário em ordem de criação.
func (g *TaskGateway) ListTasks(ctx context.Context, uid string) ([]models.Task, error) {
	query := g.client.Collection("users").Doc(uid).Collection(tasksSubCollection).
		OrderBy("created_at", firestore.Asc)

	var tasks []models.Task
	iter := query.Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &models.StorageError{Op: "listTasks", Err: err}
		}
		var task models.Task
		if err := doc.DataTo(&task); err != nil {
			utilities.LogError(err, fmt.Sprintf("Documento de tarefa inválido ignorado: %s", doc.Ref.ID))
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// ListTasksByStatus devolve as tarefas do usuário com o status informado.
func (g *TaskGateway) ListTasksByStatus(ctx context.Context, uid string, st models.TaskStatus) ([]models.Task, error) {
	query := g.client.Collection("users").Doc(uid).Collection(tasksSubCollection).
		Where("status", "==", st)

	var tasks []models.Task
	iter := query.Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &models.StorageError{Op: "listTasksByStatus", Err: err}
		}
		var task models.Task
		if err := doc.DataTo(&task); err != nil {
			utilities.LogError(err, fmt.Sprintf("Documento de tarefa inválido ignorado: %s", doc.Ref.ID))
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// DeleteAllTasks apaga a subcoleção inteira de tarefas do usuário, em batches.
// O Firestore não deleta subcoleções automaticamente ao deletar o documento
// pai, então cada documento precisa ser removido individualmente.
func (g *TaskGateway) DeleteAllTasks(ctx context.Context, uid string) error {
	tasksRef := g.client.Collection("users").Doc(uid).Collection(tasksSubCollection)
	batchSize := 500 // O Firestore recomenda batches de até 500 operações

	for {
		iter := tasksRef.Limit(batchSize).Documents(ctx)
		numDeleted := 0

		batch := g.client.Batch()
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return fmt.Errorf("erro ao iterar tarefas para deleção do usuário %s: %w", uid, err)
			}
			batch.Delete(doc.Ref)
			numDeleted++
		}

		if numDeleted == 0 {
			break
		}

		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("erro ao deletar batch de tarefas do usuário %s: %w", uid, err)
		}
		utilities.LogInfo("Deletadas %d tarefas do usuário %s no Firestore", numDeleted, uid)
	}

	return nil
}
