package convo

import (
	"context"
	"errors"
	"fmt"

	"bot-ojek/internal/repo"
)

// beginOrderCapture switches a partner's conversation into order-capture
// mode: the next forwarded message becomes an order record.
func (e *Engine) beginOrderCapture(ctx context.Context, msg Message, user *repo.User) error {
	if user.State != repo.UserStateRegistered {
		return &ValidationError{Reply: "Selesaikan proses yang sedang berjalan terlebih dahulu."}
	}
	if !user.IsPartner {
		return &NotFoundError{Reply: "Maaf, anda bukan tidak termasuk dalam mitra kami!"}
	}

	ok, err := e.store.UpdateUserState(ctx, user.ID, repo.UserStateRegistered, repo.UserStateAddOrder)
	if err != nil {
		return fmt.Errorf("enter order capture: %w", err)
	}
	if !ok {
		return &ValidationError{Reply: "Selesaikan proses yang sedang berjalan terlebih dahulu."}
	}
	user.State = repo.UserStateAddOrder
	e.countFlowTransition("order", string(user.State))

	return e.reply(ctx, msg, "Silahkan forward pesan order dari customer.")
}

// captureOrder records a forwarded customer message as an order and returns
// the conversation to its resting state. Non-forwarded text is ignored so
// the partner can keep chatting while capture is armed.
func (e *Engine) captureOrder(ctx context.Context, msg Message, user *repo.User, body string) error {
	if !msg.IsForwarded {
		return nil
	}

	order := repo.Order{
		UserID: &user.ID,
		Time:   msg.Timestamp.In(e.cfg.Timezone),
		Status: repo.OrderStatusPlaced,
		Note:   body,
		Active: true,
	}
	partner, err := e.store.FindPartnerByUserID(ctx, user.ID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("find partner for order: %w", err)
	}
	if partner != nil {
		order.PartnerID = &partner.ID
	}

	created, err := e.store.CreateOrder(ctx, order)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	e.logger.Info("order captured", "order", created.ID, "user", user.ID)

	ok, err := e.store.UpdateUserState(ctx, user.ID, repo.UserStateAddOrder, repo.UserStateRegistered)
	if err != nil {
		return fmt.Errorf("leave order capture: %w", err)
	}
	if ok {
		user.State = repo.UserStateRegistered
	}
	e.countFlowTransition("order", string(repo.UserStateRegistered))

	return e.reply(ctx, msg, "Order berhasil dicatat. Terima kasih!")
}
