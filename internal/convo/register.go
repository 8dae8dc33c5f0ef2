package convo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bot-ojek/internal/repo"
)

// registrationStep is one state in the registration flow: a prompt to repeat
// when the input cannot be consumed, and a processor that consumes the answer
// and advances.
type registrationStep struct {
	prompt  func(e *Engine, ctx context.Context, u *repo.User) error
	process func(e *Engine, ctx context.Context, u *repo.User, text string) error
}

var registrationSteps = map[repo.UserState]registrationStep{
	repo.UserStateAskStart: {
		prompt:  promptForName,
		process: processName,
	},
	repo.UserStateAskName: {
		prompt:  promptForName,
		process: processName,
	},
	repo.UserStateAskUsername: {
		prompt:  promptForUsername,
		process: processUsername,
	},
	repo.UserStateAskEmail: {
		prompt:  promptForEmail,
		process: processEmail,
	},
	repo.UserStateAskGender: {
		prompt:  promptForGender,
		process: processGender,
	},
}

// validateRegistrationSteps guards the transition table at startup: every
// pre-registered state must have both a prompt and a processor.
func validateRegistrationSteps() error {
	states := []repo.UserState{
		repo.UserStateAskStart,
		repo.UserStateAskName,
		repo.UserStateAskUsername,
		repo.UserStateAskEmail,
		repo.UserStateAskGender,
	}
	for _, s := range states {
		step, ok := registrationSteps[s]
		if !ok {
			return fmt.Errorf("registration flow: no step for state %q", s)
		}
		if step.prompt == nil || step.process == nil {
			return fmt.Errorf("registration flow: incomplete step for state %q", s)
		}
	}
	return nil
}

func isRegistrationState(s repo.UserState) bool {
	_, ok := registrationSteps[s]
	return ok
}

// advanceRegistration consumes one message inside the registration flow.
// Command-looking input never advances the flow; it re-sends the current
// prompt instead.
func (e *Engine) advanceRegistration(ctx context.Context, u *repo.User, text string) error {
	// askStart only exists to survive a crash between user creation and the
	// first prompt. Once a real name is stored, the record is promoted.
	if u.State == repo.UserStateAskStart && u.Name != repo.PlaceholderName {
		if err := e.transitionUser(ctx, u, repo.UserStateAskStart, repo.UserStateAskName); err != nil {
			return err
		}
	}

	step, ok := registrationSteps[u.State]
	if !ok {
		return nil
	}
	if strings.HasPrefix(strings.TrimSpace(text), Sigil) {
		return step.prompt(e, ctx, u)
	}
	return step.process(e, ctx, u, strings.TrimSpace(text))
}

// transitionUser moves a user between states, refusing to clobber a state
// written by a concurrent message.
func (e *Engine) transitionUser(ctx context.Context, u *repo.User, from, to repo.UserState) error {
	ok, err := e.store.UpdateUserState(ctx, u.ID, from, to)
	if err != nil {
		return fmt.Errorf("transition user state: %w", err)
	}
	if !ok {
		return fmt.Errorf("user %s left state %q before transition to %q", u.ID, from, to)
	}
	u.State = to
	e.countFlowTransition("registration", string(to))
	return nil
}

func promptForName(e *Engine, ctx context.Context, u *repo.User) error {
	return e.sendTo(ctx, u.WAID, "Harap masukkan namamu!")
}

func processName(e *Engine, ctx context.Context, u *repo.User, text string) error {
	if text == "" {
		return &ValidationError{Reply: "Nama tidak boleh kosong. Harap masukkan namamu!"}
	}
	u.Name = text
	u.State = repo.UserStateAskUsername
	if err := e.store.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("save name: %w", err)
	}
	e.countFlowTransition("registration", string(u.State))
	return promptForUsername(e, ctx, u)
}

func promptForUsername(e *Engine, ctx context.Context, u *repo.User) error {
	return e.sendTo(ctx, u.WAID, "Harap masukkan username!")
}

func processUsername(e *Engine, ctx context.Context, u *repo.User, text string) error {
	if text == "" {
		return &ValidationError{Reply: "Username tidak boleh kosong. Harap masukkan username!"}
	}

	existing, err := e.store.FindUserByUsername(ctx, text)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("check username: %w", err)
	}
	if existing != nil && existing.ID != u.ID {
		return &ConflictError{Reply: "Username sudah digunakan, silahkan memasukkan username yang lain!"}
	}

	u.Username = text
	u.State = repo.UserStateAskEmail
	if err := e.store.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("save username: %w", err)
	}
	e.countFlowTransition("registration", string(u.State))
	return promptForEmail(e, ctx, u)
}

func promptForEmail(e *Engine, ctx context.Context, u *repo.User) error {
	return e.sendTo(ctx, u.WAID, "Harap masukkan email!")
}

func processEmail(e *Engine, ctx context.Context, u *repo.User, text string) error {
	if text == "" || !strings.Contains(text, "@") {
		return &ValidationError{Reply: "Email tidak valid. Harap masukkan email!"}
	}

	existing, err := e.store.FindUserByEmail(ctx, text)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("check email: %w", err)
	}
	if existing != nil && existing.ID != u.ID {
		return &ConflictError{Reply: "Email sudah digunakan, silahkan memasukkan email yang lain!"}
	}

	u.Email = text
	u.State = repo.UserStateAskGender
	if err := e.store.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("save email: %w", err)
	}
	e.countFlowTransition("registration", string(u.State))
	return promptForGender(e, ctx, u)
}

const genderPrompt = "Harap masukkan gender (Laki-laki / Perempuan / Tidak ingin disebutkan)!"

func promptForGender(e *Engine, ctx context.Context, u *repo.User) error {
	return e.sendTo(ctx, u.WAID, genderPrompt)
}

func processGender(e *Engine, ctx context.Context, u *repo.User, text string) error {
	var gender string
	switch strings.ToLower(text) {
	case "laki-laki":
		gender = "Laki-laki"
	case "perempuan":
		gender = "Perempuan"
	case "tidak ingin disebutkan":
		gender = "-"
	default:
		return &ValidationError{Reply: "Gender tidak valid. " + genderPrompt}
	}

	u.Gender = gender
	u.State = repo.UserStateRegistered
	if err := e.store.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("save gender: %w", err)
	}
	e.countFlowTransition("registration", string(u.State))

	congrats := fmt.Sprintf("Selamat, %s, nomor ini sudah terdaftar dengan email %s. Gunakan _-commandlist_ untuk melihat daftar command.", u.Username, u.Email)
	return e.sendTo(ctx, u.WAID, congrats)
}
