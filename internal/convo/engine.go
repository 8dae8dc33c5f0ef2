package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bot-ojek/internal/credential"
	"bot-ojek/internal/metrics"
	"bot-ojek/internal/repo"

	"github.com/google/uuid"
)

// defaultPassword seeds the credential record at -start; the user changes it
// through the account recovery flow outside the bot.
const defaultPassword = "12345678"

// EngineConfig carries dispatch tunables.
type EngineConfig struct {
	Timezone        *time.Location
	StickerPath     string
	StickerTargets  []string
	CommandCacheTTL time.Duration
	DedupTTL        time.Duration
}

// Cache is the redis surface the engine and registry depend on.
type Cache interface {
	MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Engine routes inbound chat messages to the correct business action: it
// resolves the sender, filters and resolves commands, and drives the
// per-identity conversation state machines.
type Engine struct {
	store    repo.Store
	gateway  Gateway
	cache    Cache
	metrics  *metrics.Metrics
	logger   *slog.Logger
	registry *Registry
	notifier *Notifier
	queue    *identityQueue
	cfg      EngineConfig
}

// New builds the engine and validates the flow transition tables.
func New(store repo.Store, gateway Gateway, redisClient Cache, m *metrics.Metrics, logger *slog.Logger, cfg EngineConfig) (*Engine, error) {
	if cfg.Timezone == nil {
		cfg.Timezone = time.Local
	}
	if cfg.CommandCacheTTL <= 0 {
		cfg.CommandCacheTTL = time.Minute
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 12 * time.Hour
	}

	if err := validateRegistrationSteps(); err != nil {
		return nil, err
	}
	if err := validateOnboardingSteps(); err != nil {
		return nil, err
	}

	engineLogger := logger.With("component", "convo")
	return &Engine{
		store:    store,
		gateway:  gateway,
		cache:    redisClient,
		metrics:  m,
		logger:   engineLogger,
		registry: NewRegistry(store, redisClient, cfg.CommandCacheTTL, logger),
		notifier: NewNotifier(store, gateway, logger, m, cfg.StickerPath, cfg.StickerTargets),
		queue:    newIdentityQueue(),
		cfg:      cfg,
	}, nil
}

// ProcessMessage schedules the message on its identity's queue. Messages from
// the same identity run one at a time in arrival order; different identities
// run concurrently.
func (e *Engine) ProcessMessage(ctx context.Context, msg Message) {
	if e.metrics != nil {
		kind := "text"
		if strings.HasPrefix(strings.TrimSpace(msg.Body), Sigil) {
			kind = "command"
		}
		e.metrics.WAIncomingMessages.WithLabelValues(kind).Inc()
	}

	e.queue.Do(msg.identityKey(), func() {
		e.handleMessage(ctx, msg)
	})
}

// handleMessage is the per-message boundary: every failure below it is
// classified and turned into exactly one notification.
func (e *Engine) handleMessage(ctx context.Context, msg Message) {
	if e.alreadyProcessed(ctx, msg) {
		return
	}

	body := strings.TrimSpace(msg.Body)
	if body == "" {
		return
	}

	started := time.Now()
	ident := e.resolveIdentity(ctx, msg)

	var route string
	var err error
	if strings.HasPrefix(body, Sigil) {
		route = "command"
		err = e.dispatchCommand(ctx, msg, ident, body)
	} else {
		route = "text"
		err = e.dispatchText(ctx, msg, ident, body)
	}

	if e.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		e.metrics.DispatchOutcomes.WithLabelValues(route, outcome).Inc()
		e.metrics.DispatchDuration.WithLabelValues(route).Observe(time.Since(started).Seconds())
	}
	if err != nil {
		e.notifier.Report(ctx, msg, err)
	}
}

// alreadyProcessed tolerates duplicate delivery: a message ID seen before is
// skipped. A dedup backend failure degrades to processing the message.
func (e *Engine) alreadyProcessed(ctx context.Context, msg Message) bool {
	if e.cache == nil || msg.ID == "" {
		return false
	}
	first, err := e.cache.MarkProcessed(ctx, msg.ID, e.cfg.DedupTTL)
	if err != nil {
		e.logger.Warn("message dedup unavailable", "error", err)
		return false
	}
	if !first {
		if e.metrics != nil {
			e.metrics.DuplicateMessages.Inc()
		}
		e.logger.Debug("duplicate message skipped", "id", msg.ID)
	}
	return !first
}

func (e *Engine) dispatchCommand(ctx context.Context, msg Message, ident Identity, body string) error {
	switch {
	case ident.User != nil:
		return e.handleUserCommand(ctx, msg, ident.User, body)
	case ident.Group != nil:
		return e.handleGroupCommand(ctx, msg, ident.Group, body)
	case msg.IsGroup:
		return e.handleUnregisteredGroup(ctx, msg, body)
	default:
		return e.handleUnregisteredUser(ctx, msg, body)
	}
}

// dispatchText consumes free text as the answer to the current prompt when
// the sender is mid-flow. The bot only speaks when spoken to or when
// expecting an answer, so idle free text is dropped.
func (e *Engine) dispatchText(ctx context.Context, msg Message, ident Identity, body string) error {
	if ident.User == nil || msg.IsGroup {
		return nil
	}
	user := ident.User

	var partner *repo.Partner
	if firstToken(user.LastCommand) == "-addpartner" && user.PartnerID != nil {
		p, err := e.store.GetPartner(ctx, *user.PartnerID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("load partner for flow: %w", err)
		}
		partner = p
	}

	switch {
	case isRegistrationState(user.State) || (partner != nil && isOnboardingState(partner.State)):
		switch firstToken(user.LastCommand) {
		case "-start":
			return e.advanceRegistration(ctx, user, body)
		case "-addpartner":
			if !user.IsAdmin {
				return nil
			}
			if partner == nil {
				return &NotFoundError{Reply: "Data Partner tidak ditemukan"}
			}
			return e.advanceOnboarding(ctx, msg, user, partner, body)
		}
		return nil
	case user.State == repo.UserStateAddOrder:
		return e.captureOrder(ctx, msg, user, body)
	default:
		return nil
	}
}

func (e *Engine) handleUserCommand(ctx context.Context, msg Message, user *repo.User, body string) error {
	// Mid-flow, command input never advances or retargets the conversation:
	// the flow re-sends its current prompt. LastCommand keeps pointing at the
	// flow so the next free text still lands in it.
	if isRegistrationState(user.State) && firstToken(user.LastCommand) == "-start" {
		return e.advanceRegistration(ctx, user, body)
	}
	if firstToken(user.LastCommand) == "-addpartner" && user.IsAdmin && user.PartnerID != nil {
		partner, err := e.store.GetPartner(ctx, *user.PartnerID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("load partner for flow: %w", err)
		}
		if partner != nil && isOnboardingState(partner.State) {
			return e.advanceOnboarding(ctx, msg, user, partner, body)
		}
	}

	access := AccessForUser(user, msg.IsGroup)
	cmd, err := e.registry.Resolve(ctx, access, body)
	if err != nil {
		return err
	}
	if cmd == nil {
		return e.reply(ctx, msg, "Mohon maaf, command tidak ada dalam daftar.")
	}

	// The command token is recorded before anything else so free text that
	// follows can be attributed to the right flow.
	user.LastCommand = cmd.Token
	if err := e.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("record last command: %w", err)
	}

	args := commandArgs(body)
	switch cmd.Token {
	case "-commandlist":
		return e.sendCommandList(ctx, msg, access)
	case "-start":
		return e.reply(ctx, msg, "Anda sudah memulai proses sebelumnya. Gunakan command _-info_ untuk melihat status.")
	case "-ready":
		return e.partnerReady(ctx, msg, user, args)
	case "-busy":
		return e.partnerBusy(ctx, msg, user, args)
	case "-info":
		return e.sendUserInfo(ctx, msg, user)
	case "-addpartner":
		if user.IsAdmin {
			return e.beginAddPartner(ctx, msg, user, body)
		}
		if user.IsPartner {
			return e.reply(ctx, msg, "Hanya admin yang dapat menambahkan mitra.")
		}
		return nil
	case "-status":
		return e.sendPartnerStatus(ctx, msg, args)
	case "-addorder":
		return e.beginOrderCapture(ctx, msg, user)
	default:
		return e.reply(ctx, msg, "Command tidak ditemukan. Gunakan _-commandlist_ untuk melihat daftar command.")
	}
}

func (e *Engine) handleGroupCommand(ctx context.Context, msg Message, group *repo.GroupChat, body string) error {
	access := AccessForGroup(group)
	cmd, err := e.registry.Resolve(ctx, access, body)
	if err != nil {
		return err
	}
	if cmd == nil {
		// Unknown tokens stay silent in groups to avoid noise for
		// members who are not talking to the bot.
		return nil
	}

	args := commandArgs(body)
	switch cmd.Token {
	case "-commandlist":
		return e.sendCommandList(ctx, msg, access)
	case "-start":
		return e.reply(ctx, msg, "Group chat sudah terdaftar. Gunakan _-commandlist_ untuk melihat daftar command.")
	case "-status":
		return e.sendPartnerStatus(ctx, msg, args)
	case "-ready", "-busy":
		// Ready/busy in a group acts on the sender's own partner record,
		// so the command must also be personal-tagged.
		if !cmd.IsPersonal {
			return nil
		}
		user, err := e.store.FindUserByWAID(ctx, msg.SenderJID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("find group sender: %w", err)
		}
		if cmd.Token == "-ready" {
			return e.partnerReady(ctx, msg, user, args)
		}
		return e.partnerBusy(ctx, msg, user, args)
	default:
		return e.reply(ctx, msg, "Command tidak ditemukan. Gunakan _-commandlist_ untuk melihat daftar command.")
	}
}

// handleUnregisteredUser starts registration on an exact start command and
// nudges toward it otherwise.
func (e *Engine) handleUnregisteredUser(ctx context.Context, msg Message, body string) error {
	if firstToken(body) != "-start" {
		return e.reply(ctx, msg, "Gunakan command _-start_ untuk menggunakan bot ini!")
	}

	hash, err := credential.Hash(defaultPassword)
	if err != nil {
		return fmt.Errorf("hash default password: %w", err)
	}
	seed := uuid.NewString()[:8]
	user := repo.User{
		Name:         repo.PlaceholderName,
		Gender:       "-",
		Username:     "user-" + seed,
		Email:        "user-" + seed + "@gmail.com",
		PasswordHash: hash,
		WAID:         msg.SenderJID,
		Number:       msg.SenderNumber,
		PushName:     msg.PushName,
		State:        repo.UserStateAskStart,
		LastCommand:  "-start",
		Active:       true,
	}
	if _, err := e.store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("register user: %w", err)
	}

	e.countFlowTransition("registration", string(repo.UserStateAskStart))
	return e.reply(ctx, msg, "Harap masukkan namamu!")
}

// handleUnregisteredGroup registers the group on an exact start command and
// stays silent otherwise.
func (e *Engine) handleUnregisteredGroup(ctx context.Context, msg Message, body string) error {
	if firstToken(body) != "-start" {
		return nil
	}

	size, err := e.gateway.GroupParticipantCount(ctx, msg.ChatJID)
	if err != nil {
		e.logger.Warn("failed reading group size", "chat", msg.ChatJID, "error", err)
	}
	group := repo.GroupChat{
		GroupJID: msg.ChatJID,
		Size:     size,
		Active:   true,
	}
	if _, err := e.store.CreateGroupChat(ctx, group); err != nil {
		return fmt.Errorf("register group chat: %w", err)
	}
	return e.reply(ctx, msg, "Selamat, bot sudah dapat digunakan di Group Chat ini.")
}

func (e *Engine) sendCommandList(ctx context.Context, msg Message, access Access) error {
	commands, err := e.registry.Visible(ctx, access)
	if err != nil {
		return err
	}
	if len(commands) == 0 {
		return e.reply(ctx, msg, "Tidak ada command yang tersedia saat ini.")
	}

	var b strings.Builder
	b.WriteString("Berikut daftar command yang bisa digunakan:")
	for _, cmd := range commands {
		b.WriteString(fmt.Sprintf("\n✅ _%s_ : %s (%s)", cmd.Token, cmd.Name, cmd.Description))
	}
	return e.reply(ctx, msg, b.String())
}

func (e *Engine) sendUserInfo(ctx context.Context, msg Message, user *repo.User) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Menampilkan informasi Anda:\n- *ID* : %s\n- *Nama* : %s\n- *Username* : %s\n- *Email* : %s\n- *Nomor Terdaftar* : %s",
		user.ID, user.Name, user.Username, user.Email, user.Number)

	if user.IsPartner {
		partner, err := e.store.FindPartnerByUserID(ctx, user.ID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("load partner info: %w", err)
		}
		if partner != nil {
			names, err := e.store.ListServiceNamesForPartner(ctx, partner.ID)
			if err != nil {
				return fmt.Errorf("load partner services: %w", err)
			}
			fmt.Fprintf(&b, "\n\nInformasi Partner:\n- *Jasa*: %s\n- *Sepeda Motor*: %s\n- *Ready*: %s\n- *Alasan*: %s",
				strings.Join(names, ", "), orDash(partner.Motorcycle), yesNo(partner.IsReady), dashIfEmpty(partner.Reason))
		}
	}

	if user.IsAdmin {
		partnerID := "-"
		if user.PartnerID != nil {
			partnerID = *user.PartnerID
		}
		fmt.Fprintf(&b, "\n\nInformasi Admin:\n- *State saat ini* : %s\n- *Partner ID* : %s", user.State, partnerID)
	}

	return e.reply(ctx, msg, b.String())
}

func (e *Engine) reply(ctx context.Context, msg Message, text string) error {
	if err := e.gateway.SendText(ctx, msg.ChatJID, text); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

func (e *Engine) sendTo(ctx context.Context, jid, text string) error {
	if err := e.gateway.SendText(ctx, jid, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (e *Engine) countFlowTransition(flow, state string) {
	if e.metrics != nil {
		e.metrics.FlowTransitions.WithLabelValues(flow, state).Inc()
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Ya"
	}
	return "Tidak"
}
