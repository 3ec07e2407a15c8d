package domain

import "strings"

const maxAccountLen = 64

// AccountRef — непрозрачный идентификатор вызывающего или получателя.
// Аутентификацию выполняет транспорт, движок доверяет значению.
type AccountRef string

// ParseAccount нормализует и проверяет идентификатор.
func ParseAccount(raw string) (AccountRef, error) {
	account := AccountRef(strings.TrimSpace(raw))
	if err := account.Validate(); err != nil {
		return "", err
	}
	return account, nil
}

// Validate проверяет, что идентификатор непустой и не длиннее 64 байт.
func (a AccountRef) Validate() error {
	if a == "" || len(a) > maxAccountLen || strings.TrimSpace(string(a)) != string(a) {
		return ErrAccountInvalid
	}
	return nil
}

func (a AccountRef) String() string {
	return string(a)
}
