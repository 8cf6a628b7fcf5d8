package editsession

import (
	"errors"
	"strings"
	"testing"

	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/membership"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
)

func testSchema() membership.Schema {
	return membership.Schema{
		IdentityKey: "sub",
		OrganizationalUnit: membership.Category{
			Key: "dept", Label: "organizational unit",
			Members: []string{"eng", "research", "hr"},
		},
		AccessLevel: membership.Category{
			Key: "access", Label: "access level",
			Members: []string{"support", "confidential", "public"},
		},
	}
}

func alice() model.RosterRecord {
	return model.RosterRecord{
		Username:   "alice",
		Attributes: map[string]string{"sub": "1", "dept": "eng", "access": "public"},
	}
}

func bob() model.RosterRecord {
	return model.RosterRecord{
		Username:   "bob",
		Attributes: map[string]string{"sub": "2", "dept": "research", "access": "support,public"},
	}
}

func TestSession_InitiallyClosed(t *testing.T) {
	s := New(testSchema(), model.NewStatusBanner())

	if s.State() != StateClosed {
		t.Errorf("State = %q, ожидается closed", s.State())
	}
	if err := s.ToggleAccessLevel("public"); !errors.Is(err, ErrNotOpen) {
		t.Errorf("toggle в закрытой сессии: ожидалась ErrNotOpen, получено %v", err)
	}
	if err := s.Cancel(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("cancel в закрытой сессии: ожидалась ErrNotOpen, получено %v", err)
	}
	if _, err := s.Commit(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("commit в закрытой сессии: ожидалась ErrNotOpen, получено %v", err)
	}
}

func TestSession_OpenCopiesRecord(t *testing.T) {
	s := New(testSchema(), model.NewStatusBanner())
	rec := alice()

	s.Open(rec)
	if err := s.ToggleOrganizationalUnit("hr"); err != nil {
		t.Fatalf("toggle вернул ошибку: %v", err)
	}

	if rec.Attributes["dept"] != "eng" {
		t.Errorf("исходная запись изменена: dept = %q", rec.Attributes["dept"])
	}
	if got := s.WorkingCopy().Attributes["dept"]; got != "eng,hr" {
		t.Errorf("рабочая копия dept = %q, ожидается eng,hr", got)
	}
	if s.TargetIdentity() != "1" {
		t.Errorf("TargetIdentity = %q, ожидается 1", s.TargetIdentity())
	}
	if s.ID() == "" {
		t.Error("у открытой сессии должен быть ID")
	}
}

func TestSession_LastOpenWins(t *testing.T) {
	s := New(testSchema(), model.NewStatusBanner())

	s.Open(alice())
	if err := s.ToggleOrganizationalUnit("hr"); err != nil {
		t.Fatalf("toggle вернул ошибку: %v", err)
	}
	firstID := s.ID()

	if discarded := s.Open(bob()); !discarded {
		t.Error("Open на другой записи должен сообщить об отброшенной сессии")
	}

	if s.TargetIdentity() != "2" {
		t.Errorf("TargetIdentity = %q, ожидается 2", s.TargetIdentity())
	}
	if !s.WorkingCopy().Equal(bob()) {
		t.Errorf("рабочая копия должна совпадать с bob: %+v", s.WorkingCopy())
	}
	if s.ID() == firstID {
		t.Error("новая сессия должна получить новый ID")
	}
}

func TestSession_ReopenSameTargetKeepsEdits(t *testing.T) {
	s := New(testSchema(), model.NewStatusBanner())

	s.Open(alice())
	if err := s.ToggleAccessLevel("support"); err != nil {
		t.Fatalf("toggle вернул ошибку: %v", err)
	}
	id := s.ID()

	if discarded := s.Open(alice()); discarded {
		t.Error("повторное открытие той же записи не отбрасывает сессию")
	}
	if got := s.WorkingCopy().Attributes["access"]; got != "public,support" {
		t.Errorf("access = %q, ожидается public,support", got)
	}
	if s.ID() != id {
		t.Error("ID не должен меняться при повторном открытии")
	}
}

func TestSession_IdentityFallsBackToUsername(t *testing.T) {
	s := New(testSchema(), model.NewStatusBanner())
	s.Open(model.RosterRecord{Username: "dave", Attributes: map[string]string{"dept": "hr"}})

	if s.TargetIdentity() != "dave" {
		t.Errorf("TargetIdentity = %q, ожидается dave", s.TargetIdentity())
	}
}

func TestSession_ToggleLastMemberRejected(t *testing.T) {
	banner := model.NewStatusBanner()
	s := New(testSchema(), banner)
	s.Open(alice())

	err := s.ToggleAccessLevel("public")

	var violation *membership.InvariantViolation
	if !errors.As(err, &violation) {
		t.Fatalf("ожидалась InvariantViolation, получено %v", err)
	}
	if !s.IsOpen() {
		t.Error("сессия должна остаться открытой")
	}
	if !s.WorkingCopy().Equal(alice()) {
		t.Errorf("рабочая копия изменена: %+v", s.WorkingCopy())
	}

	st := banner.Get()
	if st.Status != model.StatusError || !strings.Contains(st.Message, "at least one") {
		t.Errorf("баннер = %+v, ожидалась ошибка с 'at least one'", st)
	}

	// После отказа можно переключить другое значение
	if err := s.ToggleAccessLevel("confidential"); err != nil {
		t.Errorf("повторная попытка вернула ошибку: %v", err)
	}
}

func TestSession_CommitDoesNotClose(t *testing.T) {
	s := New(testSchema(), model.NewStatusBanner())
	s.Open(alice())

	rec, err := s.Commit()
	if err != nil {
		t.Fatalf("commit вернул ошибку: %v", err)
	}
	if !s.IsOpen() {
		t.Error("commit не должен закрывать сессию")
	}

	// Изменение возвращённой копии не влияет на рабочую
	rec.Attributes["dept"] = "mutated"
	if s.WorkingCopy().Attributes["dept"] != "eng" {
		t.Error("commit должен возвращать копию")
	}

	s.Close()
	if s.IsOpen() || s.ID() != "" || s.TargetIdentity() != "" {
		t.Error("после Close сессия должна быть закрыта и очищена")
	}
}

func TestSession_Cancel(t *testing.T) {
	s := New(testSchema(), model.NewStatusBanner())
	s.Open(alice())
	if err := s.ToggleOrganizationalUnit("research"); err != nil {
		t.Fatalf("toggle вернул ошибку: %v", err)
	}

	if err := s.Cancel(); err != nil {
		t.Fatalf("cancel вернул ошибку: %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("State = %q, ожидается closed", s.State())
	}
	if len(s.WorkingCopy().Attributes) != 0 {
		t.Error("рабочая копия должна быть отброшена")
	}
}
