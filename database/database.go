package database

import (
	"database/sql"
	"fmt"
	"os"

	"kanban-scheduler/utilities"

	_ "github.com/lib/pq"
)

func ConnectPostgres() (*sql.DB, error) {
	// Configurações do banco de dados
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")
	sslmode := os.Getenv("DB_SSLMODE")

	// Monta a string de conexão
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	// Abre a conexão
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		utilities.LogError(err, "Erro ao abrir conexão com o banco de dados")
		return nil, err
	}

	// Testa a conexão
	err = db.Ping()
	if err != nil {
		utilities.LogError(err, "Erro ao conectar ao banco de dados")
		return nil, err
	}

	utilities.LogInfo("Conectado ao PostgreSQL com sucesso")
	return db, nil
}

// EnsureUser garante que o uid do Firebase tenha um registro na tabela users,
// criando-o no primeiro login.
func EnsureUser(db *sql.DB, uid, email, displayName string) error {
	var dbUID string
	err := db.QueryRow("SELECT firebase_uid FROM users WHERE firebase_uid = $1", uid).Scan(&dbUID)

	switch {
	case err == sql.ErrNoRows:
		// Primeiro acesso - cria novo registro
		utilities.LogInfo("Primeiro acesso para UID %s, criando registro no PostgreSQL", uid)
		_, insertErr := db.Exec(
			"INSERT INTO users (firebase_uid, email, display_name) VALUES ($1, $2, $3)",
			uid, email, displayName,
		)
		if insertErr != nil {
			utilities.LogError(insertErr, "Erro ao inserir usuário no banco de dados")
			return fmt.Errorf("erro ao inserir usuário no DB: %w", insertErr)
		}
		return nil

	case err != nil:
		utilities.LogError(err, "Erro ao buscar usuário no banco de dados")
		return fmt.Errorf("erro ao buscar usuário no DB: %w", err)

	default:
		utilities.LogDebug("Usuário %s já registrado no PostgreSQL", uid)
		return nil
	}
}

// DeleteUser remove o registro do usuário da tabela users.
func DeleteUser(db *sql.DB, uid string) error {
	_, err := db.Exec("DELETE FROM users WHERE firebase_uid = $1", uid)
	if err != nil {
		utilities.LogError(err, "Erro ao remover usuário do banco de dados")
		return fmt.Errorf("erro ao remover usuário do DB: %w", err)
	}
	return nil
}
