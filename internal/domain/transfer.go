package domain

import "time"

// TransferHold — зарезервированный, но ещё не подтверждённый перевод.
type TransferHold struct {
	ID        string
	From      AccountRef
	To        AccountRef
	Amount    Amount
	Reference string
	CreatedAt time.Time
}
