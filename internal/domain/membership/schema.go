package membership

// Schema — фиксированная схема атрибутов пользователя: ключ идентичности
// и две многозначные категории.
type Schema struct {
	IdentityKey        string
	OrganizationalUnit Category
	AccessLevel        Category
}

// DefaultSchema возвращает схему по умолчанию.
func DefaultSchema() Schema {
	return Schema{
		IdentityKey: "sub",
		OrganizationalUnit: Category{
			Key:     "custom:department",
			Label:   "organizational unit",
			Members: []string{"engineering", "research", "hr"},
		},
		AccessLevel: Category{
			Key:     "custom:access_level",
			Label:   "access level",
			Members: []string{"support", "confidential", "public"},
		},
	}
}

// IsDomainKey сообщает, относится ли ключ к редактируемым атрибутам.
// Ключ идентичности и серверные атрибуты (email и т.п.) не отправляются при commit.
func (s Schema) IsDomainKey(key string) bool {
	return key == s.OrganizationalUnit.Key || key == s.AccessLevel.Key
}

// Categories возвращает обе категории в фиксированном порядке.
func (s Schema) Categories() []Category {
	return []Category{s.OrganizationalUnit, s.AccessLevel}
}
