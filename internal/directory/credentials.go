package directory

import "context"

type credentialsKey struct{}

// Credentials — учётные данные вызывающего администратора, пробрасываемые в каталог.
type Credentials struct {
	// BearerToken — токен для заголовка Authorization
	BearerToken string
	// AccessToken — «сырой» access token для дополнительного заголовка
	AccessToken string
}

// WithCredentials помещает учётные данные в контекст.
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFromContext извлекает учётные данные из контекста.
func CredentialsFromContext(ctx context.Context) (Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(Credentials)
	return creds, ok
}
