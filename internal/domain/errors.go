package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound — базовая ошибка отсутствующей сущности.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — базовая ошибка нарушения уникальности при создании.
	ErrAlreadyExists = errors.New("already exists")

	// ErrShopNotFound возвращается, если у владельца нет магазина.
	ErrShopNotFound = fmt.Errorf("shop %w", ErrNotFound)
	// ErrProductNotFound возвращается, если товар с таким product_id не найден.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	// ErrListingNotFound возвращается, если запись реестра не найдена или удалена.
	ErrListingNotFound = fmt.Errorf("listing %w", ErrNotFound)

	// ErrShopAlreadyExists — у владельца уже есть магазин.
	ErrShopAlreadyExists = fmt.Errorf("shop %w", ErrAlreadyExists)
	// ErrDuplicateProductID — product_id уже занят другим товаром.
	ErrDuplicateProductID = fmt.Errorf("product_id %w", ErrAlreadyExists)

	// ErrUnauthorized — вызывающий не владеет сущностью, которую пытается изменить.
	ErrUnauthorized = errors.New("caller is not the owner")
	// ErrCallerRequired — операция требует идентификатора вызывающего.
	ErrCallerRequired = errors.New("caller identity is required")

	// ErrPriceMismatch — приложенная сумма не совпадает с ценой.
	ErrPriceMismatch = errors.New("attached amount does not match price")
	// ErrOutOfStock — запас товара исчерпан.
	ErrOutOfStock = errors.New("product is out of stock")
	// ErrTransferFailed — перевод средств не подтверждён, списание отменено.
	ErrTransferFailed = errors.New("value transfer failed")
	// ErrInsufficientEscrow — на эскроу-счёте недостаточно средств для перепродажи.
	ErrInsufficientEscrow = errors.New("escrow balance is below price")
	// ErrAlreadyOwner — покупатель уже владеет записью реестра.
	ErrAlreadyOwner = errors.New("buyer already owns listing")
	// ErrInsufficientFunds — на счёте плательщика недостаточно средств.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrRegistryExhausted — пространство идентификаторов реестра (uint32) исчерпано.
	ErrRegistryExhausted = errors.New("registry id space exhausted")
	// ErrHoldNotFound — резерв перевода не найден или уже завершён.
	ErrHoldNotFound = errors.New("transfer hold not found")

	// ErrAmountOverflow — результат операции не помещается в 128 бит.
	ErrAmountOverflow = errors.New("amount overflows 128 bits")
	// ErrAmountUnderflow — вычитание привело бы к отрицательной сумме.
	ErrAmountUnderflow = errors.New("amount underflow")
	// ErrAmountInvalid — строка не является десятичным беззнаковым числом.
	ErrAmountInvalid = errors.New("amount must be an unsigned decimal integer")

	// Ошибки валидации входных данных.
	ErrAccountInvalid      = errors.New("account must be non-empty and at most 64 bytes")
	ErrNameRequired        = errors.New("name is required")
	ErrProductIDRequired   = errors.New("product_id is required")
	ErrSupplyTooLarge      = errors.New("total_supply exceeds supported range")
	ErrDescriptionTooLarge = errors.New("description is too long")

	// Ошибки idempotency-слоя.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyKeyInvalid          = errors.New("idempotency key is too long or contains separators")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound проверяет, относится ли ошибка к отсутствующим сущностям.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists проверяет нарушение уникальности.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// ValidationError собирает ошибки Validate() одного запроса.
type ValidationError struct {
	Errs []error
}

// NewValidationError возвращает nil для пустого списка.
func NewValidationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errs: errs}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() []error {
	return e.Errs
}

// IsValidation сообщает, что ошибка вызвана некорректными входными данными.
func IsValidation(err error) bool {
	var target *ValidationError
	if errors.As(err, &target) {
		return true
	}
	return errors.Is(err, ErrAmountInvalid) || errors.Is(err, ErrAmountOverflow) || errors.Is(err, ErrAccountInvalid)
}
