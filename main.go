package main

import (
	"log"
	"os"

	"kanban-scheduler/attachments"
	"kanban-scheduler/database"
	"kanban-scheduler/firebase"
	"kanban-scheduler/handlers"
	"kanban-scheduler/taskstore"
	"kanban-scheduler/utilities"

	"github.com/joho/godotenv"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Fatal("Erro ao carregar o arquivo .env")
	}
	utilities.InitLogger()

	db, err := database.ConnectPostgres()
	if err != nil {
		log.Fatalf("Erro ao conectar ao banco de dados: %v", err)
	}
	defer db.Close()

	firestoreClient, err := firebase.GetFirestoreClient()
	if err != nil {
		log.Fatalf("Erro ao obter cliente do Firestore: %v", err)
	}
	defer firestoreClient.Close()

	bucket, err := firebase.GetStorageBucket()
	if err != nil {
		log.Fatalf("Erro ao obter bucket de anexos: %v", err)
	}

	taskGateway := firebase.NewTaskGateway(firestoreClient)
	attachmentGateway := firebase.NewAttachmentGateway(bucket, os.Getenv("FIREBASE_STORAGE_BUCKET"))
	anexos := attachments.NewManager(attachmentGateway)
	stores := taskstore.NewManager(taskGateway, anexos)

	handlers.Init(db, stores, taskGateway)

	LoadRoutes()
}
