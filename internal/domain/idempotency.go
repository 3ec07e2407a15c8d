package domain

import (
	"strings"
	"time"
)

// MaxIdempotencyKeyLength ограничивает клиентский ключ идемпотентности.
const MaxIdempotencyKeyLength = 128

// IdempotencyStatus — стадия обработки расчётного запроса с ключом.
type IdempotencyStatus string

const (
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	IdempotencyStatusDone       IdempotencyStatus = "done"
	IdempotencyStatusFailed     IdempotencyStatus = "failed"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// IdempotencyScope — ключ клиента в пределах вызывающего и метода.
// Один и тот же ключ от разных вызывающих не пересекается.
type IdempotencyScope struct {
	Method string
	Caller string
	Key    string
}

// NewIdempotencyScope проверяет клиентский ключ и собирает область.
func NewIdempotencyScope(method, caller, key string) (IdempotencyScope, error) {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return IdempotencyScope{}, ErrIdempotencyKeyRequired
	case len(key) > MaxIdempotencyKeyLength, strings.ContainsAny(key, "|\n"):
		return IdempotencyScope{}, ErrIdempotencyKeyInvalid
	}
	return IdempotencyScope{Method: method, Caller: caller, Key: key}, nil
}

// StorageKey — ключ записи в хранилище: method|caller|key.
func (s IdempotencyScope) StorageKey() string {
	return s.Method + "|" + s.Caller + "|" + s.Key
}

// IdempotencyRecord хранит результат расчётного запроса по ключу области.
// ResponseCode — gRPC-код ответа, ResponseBody — JSON ответа или ошибки.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	ResponseCode int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Expired сообщает, что запись пережила TTL и ключ можно занять заново.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.IsZero() && !r.TTLAt.After(now)
}
