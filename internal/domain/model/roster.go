// Пакет model — доменные модели attribute-admin.
package model

import "maps"

// DirectoryAttribute — одна пара name/value в формате каталога.
type DirectoryAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DirectoryRecord — пользователь в «плоском» формате каталога:
// username + упорядоченный список пар. Уникальность Name не гарантируется.
type DirectoryRecord struct {
	Username   string               `json:"username"`
	Attributes []DirectoryAttribute `json:"attributes"`
}

// RosterRecord — пользователь во внутреннем ключевом представлении.
// Никогда не изменяется на месте: обновление всегда заменяет запись целиком.
type RosterRecord struct {
	// Username — стабильный идентификатор в каталоге
	Username string
	// Attributes — ключ атрибута → строковое значение
	Attributes map[string]string
}

// Clone возвращает независимую копию записи (map копируется).
func (r RosterRecord) Clone() RosterRecord {
	out := RosterRecord{Username: r.Username}
	if r.Attributes != nil {
		out.Attributes = maps.Clone(r.Attributes)
	}
	return out
}

// Equal сравнивает записи по значению.
func (r RosterRecord) Equal(other RosterRecord) bool {
	return r.Username == other.Username && maps.Equal(r.Attributes, other.Attributes)
}

// Attribute возвращает значение атрибута или пустую строку.
func (r RosterRecord) Attribute(key string) string {
	return r.Attributes[key]
}

// WithAttribute возвращает копию записи с заменённым значением атрибута.
func (r RosterRecord) WithAttribute(key, value string) RosterRecord {
	out := r.Clone()
	if out.Attributes == nil {
		out.Attributes = make(map[string]string, 1)
	}
	out.Attributes[key] = value
	return out
}
