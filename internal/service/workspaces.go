// Пакет service — бизнес-логика Attribute Admin.
// workspaces.go — рабочие пространства администраторов: roster, сессия
// редактирования и баннер статуса на каждого субъекта JWT.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/membership"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
	"github.com/bigkaa/goartstore/attribute-admin/internal/editsession"
	"github.com/bigkaa/goartstore/attribute-admin/internal/roster"
)

// Имена переключаемых атрибутов в API.
const (
	AttributeOrganizationalUnit = "organizational_unit"
	AttributeAccessLevel        = "access_level"
)

// Prometheus-метрики рабочих пространств.
var (
	rosterFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aa_roster_fetch_total",
		Help: "Количество загрузок roster из каталога.",
	}, []string{"result"})
	attributeCommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aa_attribute_commits_total",
		Help: "Количество отправок атрибутов в каталог.",
	}, []string{"result"})
	toggleRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aa_toggle_rejected_total",
		Help: "Количество переключений, отклонённых правилом «хотя бы один член».",
	})
	workspacesEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aa_workspaces_evicted_total",
		Help: "Количество рабочих пространств, вытесненных из LRU.",
	})
)

// Workspace — состояние представления одного администратора.
// mu сериализует все операции: store и session не потокобезопасны.
type Workspace struct {
	mu      sync.Mutex
	banner  *model.StatusBanner
	store   *roster.Store
	session *editsession.Session
	loaded  bool

	// Поля ниже защищены AttributeService.mu.
	// refs — число операций, захвативших рабочее пространство.
	refs     int
	lastUsed time.Time
}

// RosterView — снимок roster и баннера.
type RosterView struct {
	Records []model.RosterRecord
	Status  model.RequestStatus
}

// SessionView — снимок сессии редактирования.
type SessionView struct {
	// Open — открыта ли сессия; остальные поля пустые для закрытой
	Open           bool
	ID             string
	TargetIdentity string
	WorkingCopy    model.RosterRecord
	// Discarded — Open отбросил сессию на другой записи
	Discarded bool
	Status    model.RequestStatus
}

// AttributeService — операции над roster и сессией редактирования от имени администратора.
type AttributeService struct {
	dir     roster.Directory
	schema  membership.Schema
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	// ttl — время простоя, после которого рабочее пространство вытесняется.
	ttl time.Duration
	// capacity — целевой размер кэша; size — текущий размер LRU, может временно
	// превышать capacity, если все рабочие пространства закреплены.
	capacity int
	size     int

	mu         sync.Mutex
	workspaces *simplelru.LRU[string, *Workspace]
}

// NewAttributeService создаёт сервис.
// cacheSize ограничивает число рабочих пространств, ttl — время их простоя.
// Рабочее пространство с открытой сессией редактирования или выполняемой
// операцией не вытесняется. timeout ограничивает каждый вызов каталога.
func NewAttributeService(
	dir roster.Directory,
	schema membership.Schema,
	cacheSize int,
	ttl time.Duration,
	timeout time.Duration,
	logger *slog.Logger,
) *AttributeService {
	if cacheSize < 1 {
		cacheSize = 1
	}
	s := &AttributeService{
		dir:      dir,
		schema:   schema,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "attribute_service")),
		now:      time.Now,
		ttl:      ttl,
		capacity: cacheSize,
		size:     cacheSize,
	}
	// NewLRU возвращает ошибку только для size <= 0
	s.workspaces, _ = simplelru.NewLRU[string, *Workspace](cacheSize, func(subject string, _ *Workspace) {
		workspacesEvictedTotal.Inc()
		s.logger.Debug("Рабочее пространство вытеснено", slog.String("subject", subject))
	})
	return s
}

// Schema возвращает схему атрибутов.
func (s *AttributeService) Schema() membership.Schema {
	return s.schema
}

// acquire возвращает рабочее пространство субъекта, создавая его при необходимости,
// и закрепляет его до вызова release.
func (s *AttributeService) acquire(subject string) *Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictIdle(now)

	ws, ok := s.workspaces.Get(subject)
	if !ok {
		s.makeRoom()
		banner := model.NewStatusBanner()
		ws = &Workspace{
			banner:  banner,
			store:   roster.NewStore(s.dir, s.schema, banner, s.timeout, s.logger),
			session: editsession.New(s.schema, banner),
		}
		s.workspaces.Add(subject, ws)
	}

	ws.refs++
	ws.lastUsed = now
	return ws
}

// release снимает закрепление, взятое acquire. Вызывается после ws.mu.Unlock.
func (s *AttributeService) release(ws *Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws.refs--
	ws.lastUsed = s.now()
}

// pinned сообщает, что рабочее пространство нельзя вытеснять. Вызывается под s.mu.
// При refs == 0 ws.mu никем не захвачен, поэтому сессию можно читать без него.
func pinned(ws *Workspace) bool {
	return ws.refs > 0 || ws.session.IsOpen()
}

// evictIdle вытесняет незакреплённые рабочие пространства, простаивающие дольше ttl.
// Вызывается под s.mu.
func (s *AttributeService) evictIdle(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for _, subject := range s.workspaces.Keys() {
		ws, ok := s.workspaces.Peek(subject)
		if !ok || pinned(ws) || now.Sub(ws.lastUsed) < s.ttl {
			continue
		}
		s.workspaces.Remove(subject)
	}
	s.shrink()
}

// makeRoom освобождает место под новое рабочее пространство, вытесняя самые
// давно использованные незакреплённые. Если закреплены все, LRU растёт.
// Вызывается под s.mu.
func (s *AttributeService) makeRoom() {
	for s.workspaces.Len() >= s.capacity {
		victim := ""
		for _, subject := range s.workspaces.Keys() {
			if ws, ok := s.workspaces.Peek(subject); ok && !pinned(ws) {
				victim = subject
				break
			}
		}
		if victim == "" {
			break
		}
		s.workspaces.Remove(victim)
	}

	if s.workspaces.Len() >= s.size {
		s.size = s.workspaces.Len() + 1
		s.workspaces.Resize(s.size)
		s.logger.Warn("Все рабочие пространства заняты, кэш расширен",
			slog.Int("size", s.size),
			slog.Int("capacity", s.capacity),
		)
	}
}

// shrink возвращает размер LRU к capacity, когда закреплённые пространства освобождены.
// Вызывается под s.mu.
func (s *AttributeService) shrink() {
	target := max(s.workspaces.Len(), s.capacity)
	if target < s.size {
		s.size = target
		s.workspaces.Resize(target)
	}
}

// Roster возвращает roster администратора.
// Первое обращение загружает roster из каталога; до успешной загрузки
// каждое обращение повторяет попытку.
func (s *AttributeService) Roster(ctx context.Context, subject string) (*RosterView, error) {
	ws := s.acquire(subject)
	defer s.release(ws)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.loaded {
		if err := s.fetch(ctx, ws); err != nil {
			return nil, err
		}
	}

	return &RosterView{Records: ws.store.Records(), Status: ws.banner.Get()}, nil
}

// Refresh принудительно перезагружает roster.
// При ошибке сохраняется прежний roster, баннер переходит в error.
func (s *AttributeService) Refresh(ctx context.Context, subject string) (*RosterView, error) {
	ws := s.acquire(subject)
	defer s.release(ws)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if err := s.fetch(ctx, ws); err != nil {
		return nil, err
	}
	return &RosterView{Records: ws.store.Records(), Status: ws.banner.Get()}, nil
}

func (s *AttributeService) fetch(ctx context.Context, ws *Workspace) error {
	if _, err := ws.store.Fetch(ctx); err != nil {
		rosterFetchTotal.WithLabelValues("error").Inc()
		return err
	}
	ws.loaded = true
	rosterFetchTotal.WithLabelValues("ok").Inc()
	return nil
}

// Status возвращает баннер статуса администратора.
func (s *AttributeService) Status(subject string) model.RequestStatus {
	ws := s.acquire(subject)
	defer s.release(ws)
	return ws.banner.Get()
}

// EditSession возвращает текущую сессию редактирования.
func (s *AttributeService) EditSession(subject string) *SessionView {
	ws := s.acquire(subject)
	defer s.release(ws)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	return sessionView(ws, false)
}

// OpenEdit открывает сессию на записи roster с указанным username.
// Открытая сессия на другой записи отбрасывается (SessionView.Discarded).
func (s *AttributeService) OpenEdit(subject, username string) (*SessionView, error) {
	ws := s.acquire(subject)
	defer s.release(ws)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	index := ws.store.IndexOf(username)
	if index < 0 {
		return nil, fmt.Errorf("%w: пользователь %q отсутствует в roster", ErrNotFound, username)
	}
	record, _ := ws.store.Record(index)

	discarded := ws.session.Open(record)
	if discarded {
		s.logger.Info("Сессия редактирования на другой записи отброшена",
			slog.String("subject", subject),
			slog.String("username", username),
		)
	}
	return sessionView(ws, discarded), nil
}

// Toggle переключает член категории attribute в рабочей копии.
// Нарушение правила «хотя бы один член» возвращает *membership.InvariantViolation,
// рабочая копия не меняется.
func (s *AttributeService) Toggle(subject, attribute, member string) (*SessionView, error) {
	ws := s.acquire(subject)
	defer s.release(ws)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	var err error
	switch attribute {
	case AttributeOrganizationalUnit:
		err = ws.session.ToggleOrganizationalUnit(member)
	case AttributeAccessLevel:
		err = ws.session.ToggleAccessLevel(member)
	default:
		return nil, fmt.Errorf("%w: неизвестный атрибут %q", ErrValidation, attribute)
	}

	if err != nil {
		var violation *membership.InvariantViolation
		switch {
		case errors.As(err, &violation):
			toggleRejectedTotal.Inc()
		case errors.Is(err, membership.ErrUnknownMember):
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil, err
	}
	return sessionView(ws, false), nil
}

// CancelEdit закрывает сессию без сохранения.
func (s *AttributeService) CancelEdit(subject string) error {
	ws := s.acquire(subject)
	defer s.release(ws)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	return ws.session.Cancel()
}

// CommitEdit отправляет рабочую копию в каталог.
// sessionID, если задан, должен совпадать с открытой сессией.
// При ошибке каталога roster не меняется, сессия остаётся открытой.
func (s *AttributeService) CommitEdit(ctx context.Context, subject, sessionID string) (*SessionView, error) {
	ws := s.acquire(subject)
	defer s.release(ws)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.session.IsOpen() {
		return nil, ErrNoEditSession
	}
	if sessionID != "" && sessionID != ws.session.ID() {
		return nil, ErrSessionConflict
	}

	index := ws.store.IndexOf(ws.session.WorkingCopy().Username)
	if err := ws.store.SaveEdit(ctx, index, ws.session); err != nil {
		attributeCommitsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	attributeCommitsTotal.WithLabelValues("ok").Inc()
	return sessionView(ws, false), nil
}

// sessionView строит снимок сессии. Вызывается под ws.mu.
func sessionView(ws *Workspace, discarded bool) *SessionView {
	view := &SessionView{
		Open:      ws.session.IsOpen(),
		Discarded: discarded,
		Status:    ws.banner.Get(),
	}
	if view.Open {
		view.ID = ws.session.ID()
		view.TargetIdentity = ws.session.TargetIdentity()
		view.WorkingCopy = ws.session.WorkingCopy()
	}
	return view
}
