// Пакет membership — кодирование многозначных атрибутов (набор членов категории,
// склеенный через запятую) и инвариант «хотя бы один член».
package membership

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const separator = ","

// ErrUnknownMember — член не входит в список допустимых значений категории.
var ErrUnknownMember = errors.New("значение не входит в категорию")

// Category — фиксированная многозначная категория атрибута.
type Category struct {
	// Key — ключ атрибута в каталоге (например, custom:department)
	Key string
	// Label — человекочитаемое название для сообщений
	Label string
	// Members — канонический упорядоченный список допустимых значений
	Members []string
}

// Contains проверяет, входит ли member в категорию.
func (c Category) Contains(member string) bool {
	return slices.Contains(c.Members, member)
}

// InvariantViolation — переключение удалило бы последнего члена набора.
type InvariantViolation struct {
	Category Category
}

func (e *InvariantViolation) Error() string {
	label := e.Category.Label
	if label == "" {
		label = e.Category.Key
	}
	return "must belong to at least one " + label
}

// Parse разбирает строку через запятую в упорядоченный набор.
// Пробелы обрезаются, пустые элементы и повторы отбрасываются.
// Пустая строка даёт пустой набор — валидация остаётся на вызывающей стороне.
func Parse(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, separator)
	members := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || slices.Contains(members, p) {
			continue
		}
		members = append(members, p)
	}
	return members
}

// Serialize склеивает набор через запятую в порядке элементов.
func Serialize(members []string) string {
	return strings.Join(members, separator)
}

// Toggle переключает членство member в raw: удаляет, если есть, иначе добавляет в конец.
// Удаление последнего члена возвращает *InvariantViolation, raw не меняется.
func Toggle(raw, member string, category Category) (string, error) {
	if !category.Contains(member) {
		return raw, fmt.Errorf("%w: %q (%s)", ErrUnknownMember, member, category.Key)
	}

	members := Parse(raw)
	idx := slices.Index(members, member)
	if idx < 0 {
		return Serialize(append(members, member)), nil
	}
	if len(members) == 1 {
		return raw, &InvariantViolation{Category: category}
	}
	return Serialize(slices.Delete(members, idx, idx+1)), nil
}
