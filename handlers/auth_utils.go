package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"kanban-scheduler/firebase"
	"kanban-scheduler/models"
	"kanban-scheduler/taskstore"
	"kanban-scheduler/utilities"
)

type contextKey string

const userIDKey contextKey = "uid"

var (
	db           *sql.DB
	stores       *taskstore.Manager
	tasksGateway *firebase.TaskGateway
)

// Init injeta as dependências compartilhadas pelos handlers.
func Init(database *sql.DB, storeManager *taskstore.Manager, taskGateway *firebase.TaskGateway) {
	db = database
	stores = storeManager
	tasksGateway = taskGateway
}

// getUIDFromToken extrai o UID do usuário do token Firebase
func getUIDFromToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("token não fornecido")
	}

	token := strings.Replace(authHeader, "Bearer ", "", 1)
	tokenInfo, err := firebase.VerifyUserToken(token)
	if err != nil {
		return "", err
	}

	utilities.LogDebug("Token verificado com sucesso para UID: %s", tokenInfo.UID)
	return tokenInfo.UID, nil
}

// AuthMiddleware valida o token Firebase e injeta o uid no contexto da requisição
func AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := getUIDFromToken(r)
		if err != nil {
			utilities.LogError(err, "Falha na autenticação")
			http.Error(w, "Não autorizado", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, uid)
		next(w, r.WithContext(ctx))
	}
}

// userID recupera o uid colocado no contexto pelo AuthMiddleware.
func userID(r *http.Request) string {
	uid, _ := r.Context().Value(userIDKey).(string)
	return uid
}

// userStore devolve o store do usuário autenticado, carregado do Firestore
// na primeira utilização.
func userStore(r *http.Request) (*taskstore.Store, error) {
	store := stores.ForUser(userID(r))
	if err := store.Load(r.Context()); err != nil {
		return nil, err
	}
	return store, nil
}

// writeError traduz a taxonomia de erros do núcleo em status HTTP.
func writeError(w http.ResponseWriter, err error) {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		http.Error(w, vErr.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "Tarefa não encontrada", http.StatusNotFound)
	case errors.Is(err, taskstore.ErrClosed):
		http.Error(w, "Sessão encerrada", http.StatusUnauthorized)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
