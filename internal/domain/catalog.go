package domain

import (
	"math"
	"strings"
	"time"
)

const maxDescriptionLen = 4096

// Shop — магазин продавца. Владелец является естественным уникальным ключом.
type Shop struct {
	Owner             AccountRef `json:"owner"`
	Name              string     `json:"name"`
	Description       string     `json:"desc"`
	TotalProductCount uint64     `json:"total_product"`
	// Seq — плотный порядковый номер (с 1), используется только для перечисления.
	Seq       uint64    `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate проверяет поля магазина перед созданием.
func (s *Shop) Validate() []error {
	var errs []error
	if err := s.Owner.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, ErrNameRequired)
	}
	if len(s.Description) > maxDescriptionLen {
		errs = append(errs, ErrDescriptionTooLarge)
	}
	return errs
}

// Product — товар магазина с запасом и ценой.
type Product struct {
	ProductID   string     `json:"product_id"`
	Name        string     `json:"name"`
	TotalSupply uint64     `json:"total_supply"`
	Price       Amount     `json:"price"`
	Description string     `json:"desc"`
	Owner       AccountRef `json:"owner"`
	Seq         uint64     `json:"seq"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate проверяет поля товара перед созданием.
func (p *Product) Validate() []error {
	var errs []error
	if strings.TrimSpace(p.ProductID) == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ErrNameRequired)
	}
	if err := p.Owner.Validate(); err != nil {
		errs = append(errs, err)
	}
	// database/sql не умеет uint64 со старшим битом.
	if p.TotalSupply > math.MaxInt64 {
		errs = append(errs, ErrSupplyTooLarge)
	}
	if len(p.Description) > maxDescriptionLen {
		errs = append(errs, ErrDescriptionTooLarge)
	}
	return errs
}

// Listing — запись плоского реестра. ID назначает хранилище, начиная с 0, и никогда не переиспользует.
type Listing struct {
	ID          uint32     `json:"id"`
	Owner       AccountRef `json:"owner"`
	Name        string     `json:"name"`
	Price       Amount     `json:"price"`
	Description string     `json:"desc"`
	Image       string     `json:"image"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate проверяет поля записи реестра перед созданием.
func (l *Listing) Validate() []error {
	var errs []error
	if err := l.Owner.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(l.Name) == "" {
		errs = append(errs, ErrNameRequired)
	}
	if len(l.Description) > maxDescriptionLen || len(l.Image) > maxDescriptionLen {
		errs = append(errs, ErrDescriptionTooLarge)
	}
	return errs
}
