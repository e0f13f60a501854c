package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"kanban-scheduler/database"
	"kanban-scheduler/firebase"
	"kanban-scheduler/models"
	"kanban-scheduler/utilities"
)

// RegisterHandler cria o usuário no Firebase Auth e o registro correspondente
// no PostgreSQL.
func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	utilities.LogDebug("Iniciando registro de usuário")

	var input models.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utilities.LogError(err, "Erro ao decodificar JSON de registro")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(input.Email) == "" || strings.TrimSpace(input.Password) == "" {
		http.Error(w, "E-mail e senha são obrigatórios", http.StatusBadRequest)
		return
	}

	user, err := firebase.CreateFirebaseUser(input.Email, input.Password, input.DisplayName)
	if err != nil {
		utilities.LogError(err, "Erro ao criar usuário no Firebase")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := database.EnsureUser(db, user.UID, input.Email, input.DisplayName); err != nil {
		utilities.LogError(err, "Erro ao registrar usuário no banco de dados")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utilities.LogInfo("Usuário registrado com sucesso: %s", user.UID)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"uid": user.UID})
}

// FinalizeLoginHandler valida o token do login, garante o registro do usuário
// no PostgreSQL e prepara o store de tarefas carregado do Firestore.
func FinalizeLoginHandler(w http.ResponseWriter, r *http.Request) {
	utilities.LogDebug("Finalizando login")

	authHeader := r.Header.Get("Authorization")
	token := strings.Replace(authHeader, "Bearer ", "", 1)
	tokenInfo, err := firebase.VerifyUserToken(token)
	if err != nil {
		utilities.LogError(err, "Falha na verificação do token de login")
		http.Error(w, "Não autorizado", http.StatusUnauthorized)
		return
	}

	uid := tokenInfo.UID
	email, _ := tokenInfo.Claims["email"].(string)
	displayName, _ := tokenInfo.Claims["name"].(string)
	if email == "" || displayName == "" {
		// Tokens de alguns provedores não carregam os claims de perfil
		if user, err := firebase.GetUserByUID(uid); err == nil {
			if email == "" {
				email = user.Email
			}
			if displayName == "" {
				displayName = user.DisplayName
			}
		}
	}

	if err := database.EnsureUser(db, uid, email, displayName); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	store := stores.ForUser(uid)
	if err := store.Load(r.Context()); err != nil {
		utilities.LogError(err, "Erro ao carregar tarefas do usuário no login")
		http.Error(w, "Erro ao carregar tarefas", http.StatusInternalServerError)
		return
	}

	snap := store.Snapshot()
	utilities.LogInfo("Login finalizado para %s com %d tarefas", uid, len(snap.Tasks))
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user": models.Usuario{
			FirebaseUID: uid,
			Email:       email,
			DisplayName: displayName,
		},
		"task_count": len(snap.Tasks),
	})
}

// LogoutHandler encerra a sessão: o cache de tarefas do usuário é limpo e o
// uid antigo deixa de ser usado.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	stores.Drop(uid)
	utilities.LogInfo("Logout do usuário %s", uid)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteUserHandler apaga a conta: tarefas no Firestore, usuário no Firebase
// Auth, registro no PostgreSQL e o store em memória.
func DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	utilities.LogDebug("Iniciando exclusão da conta %s", uid)

	if err := tasksGateway.DeleteAllTasks(r.Context(), uid); err != nil {
		utilities.LogError(err, "Erro ao apagar tarefas da conta")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := firebase.DeleteFirebaseUser(uid); err != nil {
		utilities.LogError(err, "Erro ao apagar usuário do Firebase")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := database.DeleteUser(db, uid); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stores.Drop(uid)

	utilities.LogInfo("Conta %s excluída com sucesso", uid)
	w.WriteHeader(http.StatusNoContent)
}
