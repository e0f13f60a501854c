package firebase

import (
	"context"
	"fmt"

	"kanban-scheduler/utilities"

	"firebase.google.com/go/v4/auth"
)

// Criar usuário
func CreateFirebaseUser(email, password, displayName string) (*auth.UserRecord, error) {
	ctx := context.Background()
	client, err := GetAuthClient()
	if err != nil {
		return nil, err
	}

	params := (&auth.UserToCreate{}).
		Email(email).
		EmailVerified(false).
		Password(password).
		DisplayName(displayName).
		Disabled(false)

	user, err := client.CreateUser(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar usuário: %w", err)
	}

	utilities.LogInfo("Usuário criado com sucesso: UID = %s", user.UID)
	return user, nil
}

// Buscar usuário por UID
func GetUserByUID(uid string) (*auth.UserRecord, error) {
	ctx := context.Background()
	client, err := GetAuthClient()
	if err != nil {
		return nil, err
	}

	user, err := client.GetUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar usuário: %w", err)
	}

	return user, nil
}

// Deletar usuário
func DeleteFirebaseUser(uid string) error {
	ctx := context.Background()
	client, err := GetAuthClient()
	if err != nil {
		return err
	}

	if err := client.DeleteUser(ctx, uid); err != nil {
		return fmt.Errorf("erro ao deletar usuário: %w", err)
	}

	utilities.LogInfo("Usuário com UID %s deletado com sucesso", uid)
	return nil
}

// VerifyUserToken valida o ID token do Firebase e devolve o token decodificado,
// de onde sai o uid opaco e estável do usuário.
func VerifyUserToken(token string) (*auth.Token, error) {
	ctx := context.Background()
	client, err := GetAuthClient()
	if err != nil {
		return nil, err
	}

	verifiedToken, err := client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("erro ao verificar token: %w", err)
	}

	return verifiedToken, nil
}
