package convo

import (
	"context"
	"errors"
	"testing"

	"bot-ojek/internal/repo"
)

func TestValidateRegistrationSteps(t *testing.T) {
	if err := validateRegistrationSteps(); err != nil {
		t.Fatalf("registration step table invalid: %v", err)
	}
}

func TestRegistrationFullFlow(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{}
	engine := newTestEngine(t, store, gateway)
	ctx := context.Background()

	u := seedUser(t, store, repo.User{
		Name:        repo.PlaceholderName,
		WAID:        "111@s.whatsapp.net",
		State:       repo.UserStateAskStart,
		LastCommand: "-start",
		Active:      true,
	})

	steps := []struct {
		input     string
		wantState repo.UserState
		wantReply string
	}{
		{"Budi Santoso", repo.UserStateAskUsername, "Harap masukkan username!"},
		{"budi", repo.UserStateAskEmail, "Harap masukkan email!"},
		{"budi@example.com", repo.UserStateAskGender, "gender"},
		{"laki-laki", repo.UserStateRegistered, "Selamat, budi"},
	}
	for _, step := range steps {
		if err := engine.advanceRegistration(ctx, u, step.input); err != nil {
			t.Fatalf("advance with %q: %v", step.input, err)
		}
		if u.State != step.wantState {
			t.Fatalf("after %q state = %s, want %s", step.input, u.State, step.wantState)
		}
		expectReplyContains(t, gateway, step.wantReply)
	}

	stored, err := store.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.Gender != "Laki-laki" {
		t.Fatalf("gender = %q, want Laki-laki", stored.Gender)
	}
	if stored.State != repo.UserStateRegistered {
		t.Fatalf("state = %s, want registered", stored.State)
	}
}

func TestRegistrationSigilRepromptsWithoutAdvancing(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{}
	engine := newTestEngine(t, store, gateway)
	ctx := context.Background()

	u := seedUser(t, store, repo.User{
		Name:        "Budi",
		WAID:        "111@s.whatsapp.net",
		State:       repo.UserStateAskUsername,
		LastCommand: "-start",
		Active:      true,
	})

	if err := engine.advanceRegistration(ctx, u, "-help"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if u.State != repo.UserStateAskUsername {
		t.Fatalf("state advanced to %s on command input", u.State)
	}
	if gateway.lastText() != "Harap masukkan username!" {
		t.Fatalf("expected re-prompt, got %q", gateway.lastText())
	}
}

func TestRegistrationUsernameConflict(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{}
	engine := newTestEngine(t, store, gateway)
	ctx := context.Background()

	seedUser(t, store, repo.User{
		Name:     "Existing",
		Username: "budi",
		WAID:     "222@s.whatsapp.net",
		State:    repo.UserStateRegistered,
		Active:   true,
	})
	u := seedUser(t, store, repo.User{
		Name:        "Budi",
		WAID:        "111@s.whatsapp.net",
		State:       repo.UserStateAskUsername,
		LastCommand: "-start",
		Active:      true,
	})

	err := engine.advanceRegistration(ctx, u, "budi")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if u.State != repo.UserStateAskUsername {
		t.Fatalf("state advanced past conflict: %s", u.State)
	}
}

func TestRegistrationEmailConflict(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{}
	engine := newTestEngine(t, store, gateway)
	ctx := context.Background()

	seedUser(t, store, repo.User{
		Name:   "Existing",
		Email:  "budi@example.com",
		WAID:   "222@s.whatsapp.net",
		State:  repo.UserStateRegistered,
		Active: true,
	})
	u := seedUser(t, store, repo.User{
		Name:        "Budi",
		WAID:        "111@s.whatsapp.net",
		State:       repo.UserStateAskEmail,
		LastCommand: "-start",
		Active:      true,
	})

	err := engine.advanceRegistration(ctx, u, "budi@example.com")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestRegistrationGenderValidation(t *testing.T) {
	cases := []struct {
		input      string
		wantGender string
		wantErr    bool
	}{
		{"laki-laki", "Laki-laki", false},
		{"Perempuan", "Perempuan", false},
		{"PEREMPUAN", "Perempuan", false},
		{"tidak ingin disebutkan", "-", false},
		{"lainnya", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			store := newMemStore()
			gateway := &fakeGateway{}
			engine := newTestEngine(t, store, gateway)
			u := seedUser(t, store, repo.User{
				Name:        "Budi",
				WAID:        "111@s.whatsapp.net",
				State:       repo.UserStateAskGender,
				LastCommand: "-start",
				Active:      true,
			})

			err := engine.advanceRegistration(context.Background(), u, tc.input)
			if tc.wantErr {
				var validation *ValidationError
				if !errors.As(err, &validation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("advance: %v", err)
			}
			if u.Gender != tc.wantGender {
				t.Fatalf("gender = %q, want %q", u.Gender, tc.wantGender)
			}
		})
	}
}

func TestRegistrationAskStartPromotion(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{}
	engine := newTestEngine(t, store, gateway)
	ctx := context.Background()

	// Name already captured before a crash: askStart promotes to askName
	// and the next input is still consumed as the name answer.
	u := seedUser(t, store, repo.User{
		Name:        "Budi",
		WAID:        "111@s.whatsapp.net",
		State:       repo.UserStateAskStart,
		LastCommand: "-start",
		Active:      true,
	})

	if err := engine.advanceRegistration(ctx, u, "Budi Baru"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if u.Name != "Budi Baru" {
		t.Fatalf("name = %q, want Budi Baru", u.Name)
	}
	if u.State != repo.UserStateAskUsername {
		t.Fatalf("state = %s, want askUsername", u.State)
	}
}
