package roster

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/attrcodec"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/membership"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
	"github.com/bigkaa/goartstore/attribute-admin/internal/editsession"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

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

// fakeDirectory — мок каталога.
type fakeDirectory struct {
	records   []model.DirectoryRecord
	fetchErr  error
	commitErr error
	ack       string
	block     bool
	// gate задерживает вызов до закрытия; started закрывается при входе в вызов
	gate    chan struct{}
	started chan struct{}

	committed []model.DirectoryRecord
}

func (f *fakeDirectory) hold() {
	if f.gate == nil {
		return
	}
	close(f.started)
	<-f.gate
}

func (f *fakeDirectory) FetchRoster(ctx context.Context) ([]model.DirectoryRecord, error) {
	f.hold()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.records, nil
}

func (f *fakeDirectory) CommitAttributes(ctx context.Context, rec model.DirectoryRecord) (string, error) {
	f.hold()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.committed = append(f.committed, rec)
	if f.commitErr != nil {
		return "", f.commitErr
	}
	return f.ack, nil
}

func aliceDirectory() *fakeDirectory {
	return &fakeDirectory{
		records: []model.DirectoryRecord{
			{
				Username: "alice",
				Attributes: []model.DirectoryAttribute{
					{Name: "sub", Value: "1"},
					{Name: "dept", Value: "eng"},
					{Name: "access", Value: "public"},
					{Name: "email", Value: "alice@example.com"},
				},
			},
		},
		ack: "User 'alice' updated successfully.",
	}
}

func newTestStore(t *testing.T, dir Directory) (*Store, *editsession.Session, *model.StatusBanner) {
	t.Helper()
	banner := model.NewStatusBanner()
	store := NewStore(dir, testSchema(), banner, time.Second, testLogger())
	session := editsession.New(testSchema(), banner)
	return store, session, banner
}

func TestStore_Fetch(t *testing.T) {
	store, _, banner := newTestStore(t, aliceDirectory())

	records, err := store.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch вернул ошибку: %v", err)
	}
	if len(records) != 1 || records[0].Username != "alice" {
		t.Fatalf("неожиданный roster: %+v", records)
	}
	if banner.Get().Status != model.StatusIdle {
		t.Errorf("статус = %q, ожидается idle", banner.Get().Status)
	}
}

func TestStore_FetchFailureKeepsRoster(t *testing.T) {
	dir := aliceDirectory()
	store, _, banner := newTestStore(t, dir)
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("первичный Fetch вернул ошибку: %v", err)
	}

	dir.fetchErr = errors.New("connection refused")
	if _, err := store.Fetch(context.Background()); err == nil {
		t.Fatal("ожидалась ошибка Fetch")
	}

	if store.Len() != 1 {
		t.Errorf("roster должен остаться прежним, записей: %d", store.Len())
	}
	st := banner.Get()
	if st.Status != model.StatusError || st.Message != "Ошибка загрузки пользователей: connection refused" {
		t.Errorf("баннер = %+v", st)
	}
}

func TestStore_FetchMalformedFailsWhole(t *testing.T) {
	dir := aliceDirectory()
	dir.records = append(dir.records, model.DirectoryRecord{Username: ""})
	store, _, banner := newTestStore(t, dir)

	_, err := store.Fetch(context.Background())
	if !errors.Is(err, attrcodec.ErrMalformedRecord) {
		t.Fatalf("ожидалась ErrMalformedRecord, получено %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("частичный roster не допускается, записей: %d", store.Len())
	}
	if !strings.Contains(banner.Get().Message, "position 1") {
		t.Errorf("сообщение должно указывать позицию: %q", banner.Get().Message)
	}
}

func TestStore_FetchTimeout(t *testing.T) {
	dir := &fakeDirectory{block: true}
	banner := model.NewStatusBanner()
	store := NewStore(dir, testSchema(), banner, 10*time.Millisecond, testLogger())

	_, err := store.Fetch(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ожидался DeadlineExceeded, получено %v", err)
	}
	if banner.Get().Status != model.StatusError {
		t.Errorf("статус = %q, ожидается error", banner.Get().Status)
	}
}

// Сценарий: открыть alice, добавить hr, сохранить.
func TestStore_SaveEditSuccess(t *testing.T) {
	dir := aliceDirectory()
	store, session, banner := newTestStore(t, dir)
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch вернул ошибку: %v", err)
	}

	rec, _ := store.Record(0)
	session.Open(rec)
	if err := session.ToggleOrganizationalUnit("hr"); err != nil {
		t.Fatalf("toggle вернул ошибку: %v", err)
	}
	if got := session.WorkingCopy().Attributes["dept"]; got != "eng,hr" {
		t.Fatalf("рабочая копия dept = %q, ожидается eng,hr", got)
	}

	if err := store.SaveEdit(context.Background(), 0, session); err != nil {
		t.Fatalf("SaveEdit вернул ошибку: %v", err)
	}

	saved, _ := store.Record(0)
	if saved.Attributes["dept"] != "eng,hr" {
		t.Errorf("roster[0].dept = %q, ожидается eng,hr", saved.Attributes["dept"])
	}
	// Полная рабочая копия, а не только отправленная часть
	if saved.Attributes["sub"] != "1" || saved.Attributes["email"] != "alice@example.com" {
		t.Errorf("недоменные атрибуты потеряны: %+v", saved.Attributes)
	}
	if session.IsOpen() {
		t.Error("сессия должна быть закрыта")
	}
	st := banner.Get()
	if st.Status != model.StatusSuccessful || st.Message != "User 'alice' updated successfully." {
		t.Errorf("баннер = %+v", st)
	}

	// В каталог ушли только доменные атрибуты
	if len(dir.committed) != 1 {
		t.Fatalf("ожидался 1 commit, было %d", len(dir.committed))
	}
	for _, a := range dir.committed[0].Attributes {
		if a.Name != "dept" && a.Name != "access" {
			t.Errorf("в commit попал недоменный атрибут %q", a.Name)
		}
	}
}

func TestStore_SaveEditFailureIsAtomic(t *testing.T) {
	dir := aliceDirectory()
	store, session, banner := newTestStore(t, dir)
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch вернул ошибку: %v", err)
	}

	before := store.records
	beforeRecord := before[0].Clone()

	rec, _ := store.Record(0)
	session.Open(rec)
	if err := session.ToggleAccessLevel("support"); err != nil {
		t.Fatalf("toggle вернул ошибку: %v", err)
	}

	dir.commitErr = errors.New("403 Forbidden")
	err := store.SaveEdit(context.Background(), 0, session)

	var commitErr *CommitError
	if !errors.As(err, &commitErr) {
		t.Fatalf("ожидалась CommitError, получено %v", err)
	}
	if &store.records[0] != &before[0] {
		t.Error("roster должен остаться тем же срезом")
	}
	if !store.records[0].Equal(beforeRecord) {
		t.Errorf("запись roster изменена: %+v", store.records[0])
	}
	if !session.IsOpen() {
		t.Error("сессия должна остаться открытой")
	}
	if got := session.WorkingCopy().Attributes["access"]; got != "public,support" {
		t.Errorf("рабочая копия потеряна: access = %q", got)
	}
	st := banner.Get()
	if st.Status != model.StatusError || st.Message != "Ошибка обновления атрибутов: 403 Forbidden" {
		t.Errorf("баннер = %+v", st)
	}
}

// Сценарий: снять единственный уровень доступа.
func TestStore_ToggleOffOnlyAccessLevel(t *testing.T) {
	store, session, banner := newTestStore(t, aliceDirectory())
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch вернул ошибку: %v", err)
	}

	rec, _ := store.Record(0)
	session.Open(rec)
	if err := session.ToggleAccessLevel("public"); err == nil {
		t.Fatal("ожидался отказ переключения")
	}

	if !session.WorkingCopy().Equal(rec) {
		t.Errorf("рабочая копия изменена: %+v", session.WorkingCopy())
	}
	st := banner.Get()
	if st.Status != model.StatusError || !strings.Contains(st.Message, "at least one") {
		t.Errorf("баннер = %+v", st)
	}
}

func TestStore_SaveEditGuards(t *testing.T) {
	dir := aliceDirectory()
	dir.records = append(dir.records, model.DirectoryRecord{
		Username:   "bob",
		Attributes: []model.DirectoryAttribute{{Name: "sub", Value: "2"}, {Name: "dept", Value: "hr"}},
	})
	store, session, _ := newTestStore(t, dir)
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch вернул ошибку: %v", err)
	}

	if err := store.SaveEdit(context.Background(), 0, session); !errors.Is(err, editsession.ErrNotOpen) {
		t.Errorf("закрытая сессия: ожидалась ErrNotOpen, получено %v", err)
	}

	rec, _ := store.Record(0)
	session.Open(rec)

	if err := store.SaveEdit(context.Background(), 5, session); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("ожидалась ErrIndexOutOfRange, получено %v", err)
	}
	if err := store.SaveEdit(context.Background(), 1, session); !errors.Is(err, ErrTargetMismatch) {
		t.Errorf("ожидалась ErrTargetMismatch, получено %v", err)
	}
	if len(dir.committed) != 0 {
		t.Errorf("каталог не должен вызываться, вызовов: %d", len(dir.committed))
	}
	if !session.IsOpen() {
		t.Error("сессия должна остаться открытой")
	}
}

func TestStore_IndexOf(t *testing.T) {
	store, _, _ := newTestStore(t, aliceDirectory())
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch вернул ошибку: %v", err)
	}

	if got := store.IndexOf("alice"); got != 0 {
		t.Errorf("IndexOf(alice) = %d", got)
	}
	if got := store.IndexOf("nobody"); got != -1 {
		t.Errorf("IndexOf(nobody) = %d", got)
	}
}

func TestStore_BannerLoadingWhileCallInFlight(t *testing.T) {
	tests := []struct {
		name  string
		call  func(store *Store, session *editsession.Session) error
		after model.Status
	}{
		{
			name: "fetch",
			call: func(store *Store, _ *editsession.Session) error {
				_, err := store.Fetch(context.Background())
				return err
			},
			after: model.StatusIdle,
		},
		{
			name: "saveEdit",
			call: func(store *Store, session *editsession.Session) error {
				return store.SaveEdit(context.Background(), 0, session)
			},
			after: model.StatusSuccessful,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := aliceDirectory()
			store, session, banner := newTestStore(t, dir)
			if _, err := store.Fetch(context.Background()); err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			rec, _ := store.Record(0)
			session.Open(rec)

			dir.gate = make(chan struct{})
			dir.started = make(chan struct{})
			done := make(chan error, 1)
			go func() { done <- tt.call(store, session) }()

			<-dir.started
			if st := banner.Get(); st.Status != model.StatusLoading {
				t.Errorf("статус во время вызова = %q, ожидается loading", st.Status)
			}

			close(dir.gate)
			if err := <-done; err != nil {
				t.Fatalf("вызов: %v", err)
			}
			if st := banner.Get(); st.Status != tt.after {
				t.Errorf("статус после вызова = %q, ожидается %q", st.Status, tt.after)
			}
		})
	}
}
