// Пакет attrcodec — преобразование между «плоским» форматом каталога
// (упорядоченный список пар name/value) и ключевым представлением RosterRecord.
package attrcodec

import (
	"errors"
	"fmt"
	"slices"

	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
)

// ErrMalformedRecord — запись каталога без обязательного поля username.
var ErrMalformedRecord = errors.New("некорректная запись каталога")

// MalformedRecordError — ErrMalformedRecord с позицией записи в ответе каталога.
type MalformedRecordError struct {
	Position int
	Reason   string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed directory record at position %d: %s", e.Position, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// KeyFilter — предикат отбора ключей при кодировании. nil пропускает все ключи.
type KeyFilter func(key string) bool

// Decode строит RosterRecord из записи каталога.
// При повторяющемся Name побеждает последнее вхождение.
func Decode(record model.DirectoryRecord) (model.RosterRecord, error) {
	if record.Username == "" {
		return model.RosterRecord{}, &MalformedRecordError{Reason: "missing username"}
	}

	attrs := make(map[string]string, len(record.Attributes))
	for _, a := range record.Attributes {
		attrs[a.Name] = a.Value
	}

	return model.RosterRecord{
		Username:   record.Username,
		Attributes: attrs,
	}, nil
}

// DecodeAll декодирует ответ каталога целиком.
// Первая некорректная запись проваливает всю выборку: частичный roster не возвращается.
func DecodeAll(records []model.DirectoryRecord) ([]model.RosterRecord, error) {
	out := make([]model.RosterRecord, 0, len(records))
	for i, rec := range records {
		decoded, err := Decode(rec)
		if err != nil {
			var malformed *MalformedRecordError
			if errors.As(err, &malformed) {
				malformed.Position = i
			}
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

// Encode переводит RosterRecord обратно в список пар.
// Порядок пар для каталога не значим; ключи выдаются отсортированными.
func Encode(record model.RosterRecord, filter KeyFilter) model.DirectoryRecord {
	keys := make([]string, 0, len(record.Attributes))
	for k := range record.Attributes {
		if filter == nil || filter(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	attrs := make([]model.DirectoryAttribute, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, model.DirectoryAttribute{Name: k, Value: record.Attributes[k]})
	}

	return model.DirectoryRecord{
		Username:   record.Username,
		Attributes: attrs,
	}
}
