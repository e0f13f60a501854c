package models

// Usuario é o registro mínimo mantido no PostgreSQL; a identidade real vem
// do Firebase Auth (uid opaco e estável).
type Usuario struct {
	FirebaseUID string `json:"firebase_uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// RegisterInput é o corpo da rota de registro.
type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}
