package firebase

import (
	"context"
	"fmt"
	"os"
	"sync"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

var (
	appOnce sync.Once
	app     *firebase.App
	appErr  error
)

// InitializeFirebase cria (uma única vez) o app Firebase a partir do arquivo
// de credenciais apontado por FIREBASE_CREDENTIALS_PATH.
func InitializeFirebase() (*firebase.App, error) {
	appOnce.Do(func() {
		credentialsPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
		if credentialsPath == "" {
			appErr = fmt.Errorf("FIREBASE_CREDENTIALS_PATH não está definido nas variáveis de ambiente")
			return
		}

		opt := option.WithCredentialsFile(credentialsPath)
		config := &firebase.Config{
			StorageBucket: os.Getenv("FIREBASE_STORAGE_BUCKET"),
		}

		app, appErr = firebase.NewApp(context.Background(), config, opt)
		if appErr != nil {
			appErr = fmt.Errorf("erro ao inicializar Firebase: %w", appErr)
		}
	})
	return app, appErr
}

// GetAuthClient retorna o cliente de autenticação
func GetAuthClient() (*auth.Client, error) {
	app, err := InitializeFirebase()
	if err != nil {
		return nil, err
	}
	authClient, err := app.Auth(context.Background())
	if err != nil {
		return nil, fmt.Errorf("erro ao obter cliente de Auth: %w", err)
	}
	return authClient, nil
}

// GetFirestoreClient retorna o cliente do Firestore
func GetFirestoreClient() (*firestore.Client, error) {
	app, err := InitializeFirebase()
	if err != nil {
		return nil, err
	}
	firestoreClient, err := app.Firestore(context.Background())
	if err != nil {
		return nil, fmt.Errorf("erro ao obter cliente do Firestore: %w", err)
	}
	return firestoreClient, nil
}

// GetStorageBucket retorna o bucket padrão configurado em FIREBASE_STORAGE_BUCKET.
func GetStorageBucket() (*gcs.BucketHandle, error) {
	app, err := InitializeFirebase()
	if err != nil {
		return nil, err
	}
	storageClient, err := app.Storage(context.Background())
	if err != nil {
		return nil, fmt.Errorf("erro ao obter cliente de Storage: %w", err)
	}
	bucket, err := storageClient.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("erro ao obter bucket padrão: %w", err)
	}
	return bucket, nil
}
