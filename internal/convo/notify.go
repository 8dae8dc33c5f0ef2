package convo

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"bot-ojek/internal/metrics"
	"bot-ojek/internal/repo"
)

// ValidationError is bad or ambiguous input; the flow re-prompts without
// advancing.
type ValidationError struct {
	Reply string
}

func (e *ValidationError) Error() string { return e.Reply }

// NotFoundError is a missing record the user asked about; the flow does not
// advance.
type NotFoundError struct {
	Reply string
}

func (e *NotFoundError) Error() string { return e.Reply }

// ConflictError is a uniqueness violation (username, email, phone number);
// the flow re-prompts the same step.
type ConflictError struct {
	Reply string
}

func (e *ConflictError) Error() string { return e.Reply }

// PolicyError is a refused input (forbidden-word filter); state is not
// mutated and the refusal may carry a sticker reaction.
type PolicyError struct {
	Reply string
}

func (e *PolicyError) Error() string { return e.Reply }

// Notifier classifies failures and routes them to the right audience:
// business failures reply to the actor, operational failures go to the
// admins plus a generic apology.
type Notifier struct {
	store          repo.Store
	gateway        Gateway
	logger         *slog.Logger
	metrics        *metrics.Metrics
	stickerPath    string
	stickerTargets map[string]bool
}

// NewNotifier builds a notifier. stickerTargets lists sender JIDs that earn a
// sticker reaction on policy refusals.
func NewNotifier(store repo.Store, gateway Gateway, logger *slog.Logger, m *metrics.Metrics, stickerPath string, stickerTargets []string) *Notifier {
	targets := make(map[string]bool, len(stickerTargets))
	for _, t := range stickerTargets {
		targets[t] = true
	}
	return &Notifier{
		store:          store,
		gateway:        gateway,
		logger:         logger.With("component", "notifier"),
		metrics:        m,
		stickerPath:    stickerPath,
		stickerTargets: targets,
	}
}

// Report turns one failure into exactly one notification to the appropriate
// audience. Nothing escalates past this boundary.
func (n *Notifier) Report(ctx context.Context, msg Message, err error) {
	if err == nil {
		return
	}

	var (
		validation *ValidationError
		notFound   *NotFoundError
		conflict   *ConflictError
		policy     *PolicyError
	)
	switch {
	case errors.As(err, &validation):
		n.sendToActor(ctx, msg, validation.Reply)
	case errors.As(err, &notFound):
		n.sendToActor(ctx, msg, notFound.Reply)
	case errors.As(err, &conflict):
		n.sendToActor(ctx, msg, conflict.Reply)
	case errors.As(err, &policy):
		n.sendToActor(ctx, msg, policy.Reply)
		n.maybeSendSticker(ctx, msg)
	default:
		n.Operational(ctx, msg, err)
	}
}

// Operational notifies the admins about a failure the user cannot fix and
// sends the actor a generic apology.
func (n *Notifier) Operational(ctx context.Context, msg Message, err error) {
	n.logger.Error("operational failure", "error", err, "chat", msg.ChatJID)
	if n.metrics != nil {
		n.metrics.Errors.WithLabelValues("convo").Inc()
	}

	admins, listErr := n.store.ListAdmins(ctx)
	if listErr != nil {
		n.logger.Error("failed listing admins for notification", "error", listErr)
	}
	for _, admin := range admins {
		if sendErr := n.gateway.SendText(ctx, admin.WAID, "General: "+err.Error()); sendErr != nil {
			n.logger.Warn("failed notifying admin", "admin", admin.ID, "error", sendErr)
		}
	}

	n.sendToActor(ctx, msg, "Terjadi kesalahan saat memproses pesan. Silahkan coba lagi.")
}

func (n *Notifier) sendToActor(ctx context.Context, msg Message, text string) {
	if err := n.gateway.SendText(ctx, msg.ChatJID, text); err != nil {
		n.logger.Warn("failed replying to actor", "chat", msg.ChatJID, "error", err)
	}
}

func (n *Notifier) maybeSendSticker(ctx context.Context, msg Message) {
	if n.stickerPath == "" || !n.stickerTargets[msg.SenderJID] {
		return
	}
	data, err := os.ReadFile(n.stickerPath)
	if err != nil {
		n.logger.Warn("failed reading sticker file", "path", n.stickerPath, "error", err)
		return
	}
	if err := n.gateway.SendSticker(ctx, msg.ChatJID, data); err != nil {
		n.logger.Warn("failed sending sticker", "chat", msg.ChatJID, "error", err)
	}
}
