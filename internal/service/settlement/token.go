package settlement

import (
	"context"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

// TokenTransfer — уведомление о входящем переводе токенов с назначением «купить товар».
type TokenTransfer struct {
	Sender    domain.AccountRef
	Amount    domain.Amount
	Msg       string
	ProductID string
}

// OnTokenTransfer проводит покупку, оплаченную токенами: плательщик — отправитель перевода,
// приложенная сумма — amount, msg становится memo в записи аудита.
func (e *Engine) OnTokenTransfer(ctx context.Context, transfer TokenTransfer) (Receipt, error) {
	return e.Purchase(ctx, PurchaseRequest{
		Caller:    transfer.Sender,
		ProductID: transfer.ProductID,
		Attached:  transfer.Amount,
		Memo:      transfer.Msg,
		Channel:   ChannelToken,
	})
}
