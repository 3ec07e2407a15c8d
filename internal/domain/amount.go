package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

const amountBits = 128

// Amount — беззнаковая 128-битная сумма в минимальных единицах.
// Нулевое значение равно 0 и готово к использованию.
type Amount struct {
	v uint256.Int
}

// NewAmount создаёт сумму из uint64.
func NewAmount(value uint64) Amount {
	var a Amount
	a.v.SetUint64(value)
	return a
}

// ParseAmount разбирает десятичную строку без знака.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrAmountInvalid
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return Amount{}, fmt.Errorf("%w: %q", ErrAmountInvalid, s)
		}
	}

	parsed, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrAmountOverflow, s)
	}
	if parsed.BitLen() > amountBits {
		return Amount{}, fmt.Errorf("%w: %q", ErrAmountOverflow, s)
	}

	return Amount{v: *parsed}, nil
}

// MustParseAmount паникует на некорректном вводе; только для констант и тестов.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) String() string {
	return a.v.Dec()
}

// IsZero сообщает, равна ли сумма нулю.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp возвращает -1, 0 или +1.
func (a Amount) Cmp(other Amount) int {
	return a.v.Cmp(&other.v)
}

// Equal сравнивает суммы на точное равенство.
func (a Amount) Equal(other Amount) bool {
	return a.v.Eq(&other.v)
}

// Add складывает суммы с проверкой выхода за 128 бит.
func (a Amount) Add(other Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &other.v); overflow || out.v.BitLen() > amountBits {
		return Amount{}, ErrAmountOverflow
	}
	return out, nil
}

// Sub вычитает other, не допуская отрицательного результата.
func (a Amount) Sub(other Amount) (Amount, error) {
	if a.v.Lt(&other.v) {
		return Amount{}, ErrAmountUnderflow
	}
	var out Amount
	out.v.Sub(&a.v, &other.v)
	return out, nil
}

// MarshalJSON пишет сумму голым числом: "price":100.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalJSON принимает число или десятичную строку.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = Amount{}
		return nil
	}
	raw = strings.Trim(raw, `"`)
	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value хранит сумму в БД десятичной строкой; столбцы цен TEXT в обоих диалектах.
func (a Amount) Value() (driver.Value, error) {
	return a.v.Dec(), nil
}

// Scan читает сумму из текстового или целочисленного столбца.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		parsed, err := ParseAmount(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		parsed, err := ParseAmount(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case int64:
		if v < 0 {
			return ErrAmountUnderflow
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("unsupported amount source type %T", src)
	}
}
