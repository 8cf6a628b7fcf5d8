package model

import "sync"

// Status — состояние последнего запроса, отображаемое в баннере.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusLoading    Status = "loading"
	StatusSuccessful Status = "successful"
	StatusError      Status = "error"
)

// RequestStatus — значение баннера статуса.
// Message содержит подробности ошибки при Status == StatusError.
type RequestStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// StatusBanner — единственный баннер статуса одного представления roster.
// Разделяется RosterStore и EditSession. Потокобезопасен: чтение статуса
// возможно во время выполнения сетевого вызова.
type StatusBanner struct {
	mu      sync.RWMutex
	current RequestStatus
}

// NewStatusBanner создаёт баннер в состоянии idle.
func NewStatusBanner() *StatusBanner {
	return &StatusBanner{current: RequestStatus{Status: StatusIdle}}
}

// Get возвращает текущее значение.
func (b *StatusBanner) Get() RequestStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Set заменяет текущее значение.
func (b *StatusBanner) Set(status Status, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = RequestStatus{Status: status, Message: message}
}

func (b *StatusBanner) Idle()                     { b.Set(StatusIdle, "") }
func (b *StatusBanner) Loading()                  { b.Set(StatusLoading, "") }
func (b *StatusBanner) Successful(message string) { b.Set(StatusSuccessful, message) }
func (b *StatusBanner) Error(message string)      { b.Set(StatusError, message) }
