package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"kanban-scheduler/handlers"
	"kanban-scheduler/utilities"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

func LoadRoutes() {
	r := mux.NewRouter()

	// Aplicar o middleware de logging global em todas as rotas
	r.Use(handlers.LoggingMiddleware)

	// --- Rotas de Autenticação ---
	r.HandleFunc("/auth/register", handlers.RegisterHandler).Methods("POST")
	r.HandleFunc("/auth/finalize-login", handlers.FinalizeLoginHandler).Methods("POST")
	r.HandleFunc("/auth/logout", handlers.AuthMiddleware(handlers.LogoutHandler)).Methods("POST")
	r.HandleFunc("/user/delete", handlers.AuthMiddleware(handlers.DeleteUserHandler)).Methods("DELETE")

	// --- Rotas de Tarefas (protegidas) ---
	r.HandleFunc("/tasks/create", handlers.AuthMiddleware(handlers.CreateTaskHandler)).Methods("POST")
	r.HandleFunc("/tasks/list", handlers.AuthMiddleware(handlers.ListTasksHandler)).Methods("GET")
	r.HandleFunc("/tasks/view", handlers.AuthMiddleware(handlers.TaskViewHandler)).Methods("GET")
	r.HandleFunc("/tasks/info/{task_id}", handlers.AuthMiddleware(handlers.GetTaskHandler)).Methods("GET")
	r.HandleFunc("/tasks/update/{task_id}", handlers.AuthMiddleware(handlers.UpdateTaskHandler)).Methods("PUT")
	r.HandleFunc("/tasks/delete/{task_id}", handlers.AuthMiddleware(handlers.DeleteTaskHandler)).Methods("DELETE")

	// --- Operações em lote e drag-and-drop ---
	r.HandleFunc("/tasks/bulk-update", handlers.AuthMiddleware(handlers.BulkUpdateTasksHandler)).Methods("POST")
	r.HandleFunc("/tasks/bulk-delete", handlers.AuthMiddleware(handlers.BulkDeleteTasksHandler)).Methods("POST")
	r.HandleFunc("/tasks/move/{task_id}", handlers.AuthMiddleware(handlers.MoveTaskHandler)).Methods("POST")

	// Configuração do CORS
	headers := gorillahandlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})
	methods := gorillahandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})

	allowedOriginsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	var allowedOrigins []string
	if allowedOriginsEnv == "" {
		allowedOrigins = []string{"*"}
		utilities.LogInfo("CORS_ALLOWED_ORIGINS não definida, permitindo todas as origens ('*'). Defina para maior segurança em produção.")
	} else {
		allowedOrigins = strings.Split(allowedOriginsEnv, ",")
	}
	origins := gorillahandlers.AllowedOrigins(allowedOrigins)
	utilities.LogInfo("Configurando CORS com origens permitidas: %v", allowedOrigins)

	handler := gorillahandlers.CORS(headers, methods, origins)(r)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	utilities.LogInfo("Servidor iniciado na porta %s", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
