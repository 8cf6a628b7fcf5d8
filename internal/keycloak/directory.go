// directory.go — адаптер Keycloak к интерфейсу каталога пользователей roster.Directory.
// Атрибуты Keycloak многозначные; в roster они представлены одной строкой через запятую.
package keycloak

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/membership"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
)

// DefaultPageSize — размер страницы при выборке пользователей.
const DefaultPageSize = 100

// emailAttribute — имя атрибута, под которым в roster публикуется email.
const emailAttribute = "email"

// Directory — каталог пользователей поверх Keycloak Admin REST API.
type Directory struct {
	client      *Client
	identityKey string
	pageSize    int
	logger      *slog.Logger
}

// NewDirectory создаёт каталог. identityKey — имя атрибута, в который
// публикуется Keycloak ID пользователя. pageSize <= 0 заменяется на DefaultPageSize.
func NewDirectory(client *Client, identityKey string, pageSize int, logger *slog.Logger) *Directory {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Directory{
		client:      client,
		identityKey: identityKey,
		pageSize:    pageSize,
		logger:      logger.With(slog.String("component", "keycloak_directory")),
	}
}

// FetchRoster постранично выбирает всех пользователей realm.
func (d *Directory) FetchRoster(ctx context.Context) ([]model.DirectoryRecord, error) {
	var records []model.DirectoryRecord

	for first := 0; ; first += d.pageSize {
		users, err := d.client.ListUsers(ctx, first, d.pageSize)
		if err != nil {
			return nil, err
		}
		for i := range users {
			records = append(records, d.toRecord(&users[i]))
		}
		if len(users) < d.pageSize {
			break
		}
	}

	d.logger.Debug("Пользователи Keycloak загружены", slog.Int("count", len(records)))
	return records, nil
}

// CommitAttributes находит пользователя по username и сохраняет переданные атрибуты.
// Остальные атрибуты пользователя не изменяются.
func (d *Directory) CommitAttributes(ctx context.Context, record model.DirectoryRecord) (string, error) {
	user, err := d.client.FindUserByUsername(ctx, record.Username)
	if err != nil {
		return "", err
	}

	attrs := make(map[string][]string, len(record.Attributes))
	for _, a := range record.Attributes {
		// identity и email — производные поля, в атрибуты Keycloak не пишутся
		if a.Name == d.identityKey || a.Name == emailAttribute {
			continue
		}
		attrs[a.Name] = membership.Parse(a.Value)
	}

	if err := d.client.UpdateUserAttributes(ctx, user.ID, attrs); err != nil {
		return "", err
	}

	d.logger.Info("Атрибуты пользователя обновлены в Keycloak",
		slog.String("username", record.Username),
		slog.String("user_id", user.ID),
	)
	return fmt.Sprintf("Атрибуты пользователя '%s' обновлены", record.Username), nil
}

// CheckReady делегирует проверку готовности клиенту Keycloak.
func (d *Directory) CheckReady() (string, string) {
	return d.client.CheckReady()
}

// toRecord преобразует пользователя Keycloak в запись каталога.
// Порядок атрибутов детерминирован: identity, email, затем по имени.
func (d *Directory) toRecord(u *KeycloakUser) model.DirectoryRecord {
	rec := model.DirectoryRecord{Username: u.Username}
	rec.Attributes = append(rec.Attributes, model.DirectoryAttribute{Name: d.identityKey, Value: u.ID})
	if u.Email != "" {
		rec.Attributes = append(rec.Attributes, model.DirectoryAttribute{Name: emailAttribute, Value: u.Email})
	}

	keys := make([]string, 0, len(u.Attributes))
	for k := range u.Attributes {
		if k == d.identityKey || k == emailAttribute {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		rec.Attributes = append(rec.Attributes, model.DirectoryAttribute{
			Name:  k,
			Value: strings.Join(u.Attributes[k], ","),
		})
	}
	return rec
}
