package convo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"bot-ojek/internal/repo"
)

// skipKeyword lets the admin pass over the optional vehicle steps.
const skipKeyword = "skip"

// forbiddenReasons are excuse substrings the status commands refuse outright.
var forbiddenReasons = []string{"malas", "males", "badmood", "mager"}

var policeNumberPattern = regexp.MustCompile(`^[A-Z0-9\s]+$`)

// onboardingStep mirrors registrationStep for the partner flow. The admin
// drives the flow from their own chat, so prompts go back to the admin.
type onboardingStep struct {
	prompt  func(e *Engine, ctx context.Context, msg Message, u *repo.User, p *repo.Partner) error
	process func(e *Engine, ctx context.Context, msg Message, u *repo.User, p *repo.Partner, text string) error
}

var onboardingSteps = map[repo.PartnerState]onboardingStep{
	repo.PartnerStateAskPartner: {
		prompt:  promptForPartnerNumber,
		process: processPartnerNumber,
	},
	repo.PartnerStateAskNumber: {
		prompt:  promptForPartnerNumber,
		process: processPartnerNumber,
	},
	repo.PartnerStateAskService: {
		prompt:  promptForServices,
		process: processServices,
	},
	repo.PartnerStateAskMotorcycle: {
		prompt:  promptForMotorcycle,
		process: processMotorcycle,
	},
	repo.PartnerStateAskPoliceNumber: {
		prompt:  promptForPoliceNumber,
		process: processPoliceNumber,
	},
}

func validateOnboardingSteps() error {
	states := []repo.PartnerState{
		repo.PartnerStateAskPartner,
		repo.PartnerStateAskNumber,
		repo.PartnerStateAskService,
		repo.PartnerStateAskMotorcycle,
		repo.PartnerStateAskPoliceNumber,
	}
	for _, s := range states {
		step, ok := onboardingSteps[s]
		if !ok {
			return fmt.Errorf("onboarding flow: no step for state %q", s)
		}
		if step.prompt == nil || step.process == nil {
			return fmt.Errorf("onboarding flow: incomplete step for state %q", s)
		}
	}
	return nil
}

func isOnboardingState(s repo.PartnerState) bool {
	_, ok := onboardingSteps[s]
	return ok
}

// beginAddPartner creates a provisional partner record and points the admin's
// conversation at the onboarding flow.
func (e *Engine) beginAddPartner(ctx context.Context, msg Message, admin *repo.User, body string) error {
	if admin.PartnerID != nil {
		if p, err := e.store.GetPartner(ctx, *admin.PartnerID); err == nil && isOnboardingState(p.State) {
			return e.advanceOnboarding(ctx, msg, admin, p, body)
		}
	}

	partner := repo.Partner{
		State:  repo.PartnerStateAskPartner,
		Active: false,
	}
	created, err := e.store.CreatePartner(ctx, partner)
	if err != nil {
		return fmt.Errorf("create provisional partner: %w", err)
	}

	admin.PartnerID = &created.ID
	if err := e.store.UpdateUser(ctx, admin); err != nil {
		return fmt.Errorf("attach partner to admin: %w", err)
	}

	e.countFlowTransition("onboarding", string(created.State))
	return promptForPartnerNumber(e, ctx, msg, admin, created)
}

// advanceOnboarding consumes one message inside the partner onboarding flow.
func (e *Engine) advanceOnboarding(ctx context.Context, msg Message, admin *repo.User, p *repo.Partner, text string) error {
	// askPartner only exists to survive a crash between partner creation and
	// the number prompt. Once a user is bound, the record is promoted.
	if p.State == repo.PartnerStateAskPartner && p.UserID != nil {
		p.State = repo.PartnerStateAskNumber
		if err := e.store.UpdatePartner(ctx, p); err != nil {
			return fmt.Errorf("promote partner state: %w", err)
		}
		e.countFlowTransition("onboarding", string(p.State))
	}

	step, ok := onboardingSteps[p.State]
	if !ok {
		return nil
	}
	if strings.HasPrefix(strings.TrimSpace(text), Sigil) {
		return step.prompt(e, ctx, msg, admin, p)
	}
	return step.process(e, ctx, msg, admin, p, strings.TrimSpace(text))
}

func promptForPartnerNumber(e *Engine, ctx context.Context, msg Message, _ *repo.User, _ *repo.Partner) error {
	return e.reply(ctx, msg, "Harap masukkan nomor telepon partner!")
}

// normalizePhone folds local and international prefixes into the 628 form
// numbers are stored under.
func normalizePhone(raw string) string {
	n := strings.TrimSpace(raw)
	n = strings.ReplaceAll(n, " ", "")
	n = strings.ReplaceAll(n, "-", "")
	switch {
	case strings.HasPrefix(n, "+628"):
		return "628" + n[4:]
	case strings.HasPrefix(n, "08"):
		return "628" + n[2:]
	default:
		return n
	}
}

func processPartnerNumber(e *Engine, ctx context.Context, msg Message, admin *repo.User, p *repo.Partner, text string) error {
	number := normalizePhone(text)
	if len(number) < 9 {
		return &ValidationError{Reply: "Nomor telepon yang dimasukkan tidak valid. Harap coba lagi."}
	}

	owner, err := e.store.FindUserByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return &NotFoundError{Reply: fmt.Sprintf("Pengguna dengan nomor telepon %s tidak ditemukan. Harap masukkan ulang nomor telepon partner!", number)}
		}
		return fmt.Errorf("find partner user: %w", err)
	}

	bound, err := e.store.BindPartnerUser(ctx, p.ID, owner.ID)
	if err != nil {
		return fmt.Errorf("bind partner user: %w", err)
	}
	if !bound {
		current, err := e.store.GetPartner(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("reload partner: %w", err)
		}
		if current.UserID == nil || *current.UserID != owner.ID {
			return &ConflictError{Reply: "Partner ini sudah terikat dengan pengguna lain."}
		}
		p = current
	} else {
		p.UserID = &owner.ID
	}

	p.State = repo.PartnerStateAskService
	if err := e.store.UpdatePartner(ctx, p); err != nil {
		return fmt.Errorf("save partner number step: %w", err)
	}
	e.countFlowTransition("onboarding", string(p.State))
	return promptForServices(e, ctx, msg, admin, p)
}

func promptForServices(e *Engine, ctx context.Context, msg Message, _ *repo.User, _ *repo.Partner) error {
	services, err := e.store.ListActiveServices(ctx)
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}

	var b strings.Builder
	b.WriteString("Harap masukkan layanan yang disediakan partner:")
	for _, s := range services {
		b.WriteString(fmt.Sprintf("\n✅ %s", s.Shortname))
	}
	b.WriteString("\n\nPisahkan dengan tanda '|' jika lebih dari satu. Contoh: Anjem|Jastip")
	return e.reply(ctx, msg, b.String())
}

// capitalizeFirst upper-cases the first rune only, matching how service
// shortnames are stored.
func capitalizeFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func processServices(e *Engine, ctx context.Context, msg Message, admin *repo.User, p *repo.Partner, text string) error {
	var names []string
	for _, part := range strings.Split(text, "|") {
		part = strings.TrimSpace(part)
		if part != "" {
			names = append(names, capitalizeFirst(part))
		}
	}
	if len(names) == 0 {
		return &ValidationError{Reply: "Harap masukkan minimal satu layanan. Pisahkan dengan tanda '|' jika lebih dari satu."}
	}

	services, err := e.store.FindServicesByShortnames(ctx, names)
	if err != nil {
		return fmt.Errorf("find services: %w", err)
	}
	if len(services) == 0 {
		return &NotFoundError{Reply: "Tidak ada layanan yang tersedia saat ini."}
	}

	found := make(map[string]bool, len(services))
	links := make([]repo.PartnerService, 0, len(services))
	for _, s := range services {
		found[s.Shortname] = true
		links = append(links, repo.PartnerService{ServiceID: s.ID})
	}
	var missing []string
	for _, name := range names {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		if err := e.reply(ctx, msg, "Layanan berikut tidak tersedia: "+strings.Join(missing, ", ")); err != nil {
			return err
		}
	}

	if err := e.store.SetPartnerServices(ctx, p.ID, links); err != nil {
		return fmt.Errorf("save partner services: %w", err)
	}
	p.Services = links

	p.State = repo.PartnerStateAskMotorcycle
	if err := e.store.UpdatePartner(ctx, p); err != nil {
		return fmt.Errorf("save partner service step: %w", err)
	}
	e.countFlowTransition("onboarding", string(p.State))
	return promptForMotorcycle(e, ctx, msg, admin, p)
}

func promptForMotorcycle(e *Engine, ctx context.Context, msg Message, _ *repo.User, _ *repo.Partner) error {
	return e.reply(ctx, msg, "Harap masukkan jenis sepeda motor partner! Ketik 'skip' jika partner tidak memiliki sepeda motor.")
}

func processMotorcycle(e *Engine, ctx context.Context, msg Message, admin *repo.User, p *repo.Partner, text string) error {
	if strings.EqualFold(text, skipKeyword) {
		return e.finishOnboarding(ctx, msg, admin, p)
	}
	if len(text) < 3 {
		return &ValidationError{Reply: "Jenis sepeda motor tidak valid. Harap coba lagi."}
	}

	p.Motorcycle = &text
	p.State = repo.PartnerStateAskPoliceNumber
	if err := e.store.UpdatePartner(ctx, p); err != nil {
		return fmt.Errorf("save motorcycle step: %w", err)
	}
	e.countFlowTransition("onboarding", string(p.State))
	return promptForPoliceNumber(e, ctx, msg, admin, p)
}

func promptForPoliceNumber(e *Engine, ctx context.Context, msg Message, _ *repo.User, _ *repo.Partner) error {
	return e.reply(ctx, msg, "Harap masukkan plat nomor sepeda motor partner! Ketik 'skip' untuk melewati.")
}

func processPoliceNumber(e *Engine, ctx context.Context, msg Message, admin *repo.User, p *repo.Partner, text string) error {
	if !strings.EqualFold(text, skipKeyword) {
		plate := strings.ToUpper(strings.TrimSpace(text))
		if len(plate) < 3 || !policeNumberPattern.MatchString(plate) {
			return &ValidationError{Reply: "Plat nomor tidak valid. Harap coba lagi."}
		}
		p.PoliceNumber = &plate
	}
	return e.finishOnboarding(ctx, msg, admin, p)
}

// finishOnboarding activates the partner, flags the owning user, and resets
// the admin's conversation.
func (e *Engine) finishOnboarding(ctx context.Context, msg Message, admin *repo.User, p *repo.Partner) error {
	p.State = repo.PartnerStateFinished
	p.IsReady = true
	p.Active = true
	if err := e.store.UpdatePartner(ctx, p); err != nil {
		return fmt.Errorf("finish partner onboarding: %w", err)
	}
	e.countFlowTransition("onboarding", string(p.State))

	admin.State = repo.UserStateRegistered
	admin.PartnerID = nil
	if err := e.store.UpdateUser(ctx, admin); err != nil {
		return fmt.Errorf("reset admin after onboarding: %w", err)
	}

	if p.UserID == nil {
		return errors.New("finished partner has no bound user")
	}
	owner, err := e.store.GetUserByID(ctx, *p.UserID)
	if err != nil {
		return fmt.Errorf("load partner user: %w", err)
	}
	if err := e.store.SetUserPartner(ctx, owner.ID, true); err != nil {
		return fmt.Errorf("flag partner user: %w", err)
	}

	return e.reply(ctx, msg, fmt.Sprintf("Selamat, %s sudah menjadi mitra.", owner.Name))
}

// partnerReady marks the sender's partner record ready. A reason is optional
// but filtered.
func (e *Engine) partnerReady(ctx context.Context, msg Message, user *repo.User, reason string) error {
	if err := checkReason(reason, false); err != nil {
		return err
	}

	partner, err := e.store.FindPartnerByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return &NotFoundError{Reply: "Maaf, anda bukan tidak termasuk dalam mitra kami!"}
		}
		return fmt.Errorf("find partner: %w", err)
	}

	partner.IsReady = true
	partner.Reason = reason
	if err := e.store.UpdatePartner(ctx, partner); err != nil {
		return fmt.Errorf("save partner ready: %w", err)
	}
	return e.reply(ctx, msg, "Status partner berhasil diubah menjadi ready.")
}

// partnerBusy marks the sender's partner record busy. A reason is required
// and filtered.
func (e *Engine) partnerBusy(ctx context.Context, msg Message, user *repo.User, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Reply: "Mohon sertakan alasan kenapa mitra sedang sibuk!"}
	}
	if err := checkReason(reason, true); err != nil {
		return err
	}

	partner, err := e.store.FindPartnerByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return &NotFoundError{Reply: "Maaf, anda bukan tidak termasuk dalam mitra kami!"}
		}
		return fmt.Errorf("find partner: %w", err)
	}

	partner.IsReady = false
	partner.Reason = reason
	if err := e.store.UpdatePartner(ctx, partner); err != nil {
		return fmt.Errorf("save partner busy: %w", err)
	}
	return e.reply(ctx, msg, "Status partner berhasil diubah menjadi busy.")
}

// checkReason rejects a reason containing a lazy excuse anywhere in the text.
// The busy path also strips spaces so "m a g e r" does not slip through.
func checkReason(reason string, stripSpaces bool) error {
	folded := strings.ToLower(reason)
	if stripSpaces {
		folded = strings.ReplaceAll(folded, " ", "")
	}
	for _, word := range forbiddenReasons {
		if strings.Contains(folded, word) {
			return &PolicyError{Reply: "BISA GAK JANGAN PAKE ALESAN ITU!!!!!!!!"}
		}
	}
	return nil
}
