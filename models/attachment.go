package models

// Attachment é o conteúdo de um arquivo enviado pelo usuário, ainda em
// memória, antes do upload para o bucket.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}
