package convo

import (
	"context"
	"strings"
	"testing"
	"time"

	"bot-ojek/internal/repo"
)

func statusFixture(t *testing.T) (*memStore, *fakeGateway, *Engine) {
	t.Helper()
	store := newMemStore()
	gateway := &fakeGateway{}
	engine := newTestEngine(t, store, gateway)

	now := time.Now().UTC()
	store.statuses = []repo.PartnerStatus{
		{PartnerID: "p1", Name: "Budi", Gender: "Laki-laki", Number: "628100", WAID: "100@s.whatsapp.net", IsReady: true, UpdatedAt: now},
		{PartnerID: "p2", Name: "Sari", Gender: "Perempuan", Number: "628200", WAID: "200@s.whatsapp.net", IsReady: false, Reason: "lagi ujian", UpdatedAt: now},
		{PartnerID: "p3", Name: "", Username: "cahyo", Gender: "-", Number: "628300", WAID: "300@s.whatsapp.net", IsReady: true, UpdatedAt: now},
	}
	return store, gateway, engine
}

func TestStatusRosterPersonal(t *testing.T) {
	_, gateway, engine := statusFixture(t)

	if err := engine.sendPartnerStatus(context.Background(), personalMsg("900", "-status"), ""); err != nil {
		t.Fatalf("status: %v", err)
	}

	msgs := gateway.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	text := msgs[0].Text
	if !strings.Contains(text, "Mitra yang ready:") {
		t.Fatalf("missing ready section: %q", text)
	}
	// Ready rows carry the status emoji, glyph, and relative date too.
	if !strings.Contains(text, "✅ 🧍Budi (Hari ini, ") {
		t.Fatalf("malformed ready row: %q", text)
	}
	if !strings.Contains(text, "Mitra yang tidak ready:") {
		t.Fatalf("missing busy section: %q", text)
	}
	if !strings.Contains(text, "❌ 🧍‍♀️Sari (Hari ini, ") {
		t.Fatalf("malformed busy row: %q", text)
	}
	if !strings.Contains(text, "): lagi ujian") {
		t.Fatalf("missing busy reason: %q", text)
	}
	// Name falls back to username when the profile never got one.
	if !strings.Contains(text, "cahyo") {
		t.Fatalf("missing username fallback: %q", text)
	}
	// The @number suffix is a group-only affordance.
	if strings.Contains(text, "@628") {
		t.Fatalf("personal roster should not carry numbers: %q", text)
	}
	if len(msgs[0].Mentions) != 0 {
		t.Fatal("personal roster should not carry mentions")
	}
}

func TestStatusRosterGroupMentionsReadyOnly(t *testing.T) {
	_, gateway, engine := statusFixture(t)

	if err := engine.sendPartnerStatus(context.Background(), groupMsg("900", "grp", "-status"), ""); err != nil {
		t.Fatalf("status: %v", err)
	}

	msgs := gateway.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	mentions := msgs[0].Mentions
	if len(mentions) != 2 {
		t.Fatalf("mentions = %v, want the two ready partners", mentions)
	}
	for _, m := range mentions {
		if m == "200@s.whatsapp.net" {
			t.Fatal("busy partner must not be mentioned")
		}
	}

	// Ready rows spell out the mentioned number; busy rows do not.
	text := msgs[0].Text
	if !strings.Contains(text, ", @628100)") || !strings.Contains(text, ", @628300)") {
		t.Fatalf("ready rows missing @number suffix: %q", text)
	}
	if strings.Contains(text, "@628200") {
		t.Fatalf("busy row should not carry a number: %q", text)
	}
}

func TestStatusFilterBusy(t *testing.T) {
	_, gateway, engine := statusFixture(t)

	if err := engine.sendPartnerStatus(context.Background(), personalMsg("900", "-status busy"), "busy"); err != nil {
		t.Fatalf("status: %v", err)
	}
	text := gateway.lastText()
	if strings.Contains(text, "Mitra yang ready:") {
		t.Fatalf("busy filter should omit ready section: %q", text)
	}
	if !strings.Contains(text, "Sari") {
		t.Fatalf("missing busy partner: %q", text)
	}
}

func TestStatusFilterBusyAllReady(t *testing.T) {
	store, gateway, engine := statusFixture(t)
	store.statuses = store.statuses[:1]

	if err := engine.sendPartnerStatus(context.Background(), personalMsg("900", "-status busy"), "busy"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if gateway.lastText() != "Semua mitra ready." {
		t.Fatalf("got %q", gateway.lastText())
	}
}

func TestStatusFilterReadyNoneReady(t *testing.T) {
	store, gateway, engine := statusFixture(t)
	store.statuses = store.statuses[1:2]

	if err := engine.sendPartnerStatus(context.Background(), personalMsg("900", "-status ready"), "ready"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if gateway.lastText() != "Tidak ada mitra yang ready." {
		t.Fatalf("got %q", gateway.lastText())
	}
}

func TestStatusUnknownFilter(t *testing.T) {
	_, gateway, engine := statusFixture(t)

	if err := engine.sendPartnerStatus(context.Background(), personalMsg("900", "-status bogus"), "bogus"); err != nil {
		t.Fatalf("status: %v", err)
	}
	expectReplyContains(t, gateway, "Parameter status tidak sesuai")
}

func TestStatusEmptyRoster(t *testing.T) {
	store, gateway, engine := statusFixture(t)
	store.statuses = nil

	if err := engine.sendPartnerStatus(context.Background(), personalMsg("900", "-status"), ""); err != nil {
		t.Fatalf("status: %v", err)
	}
	expectReplyContains(t, gateway, "Gagal mencari status mitra")
}

func TestFormatRelativeDate(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, loc)

	cases := []struct {
		name string
		t    time.Time
		want string
	}{
		{"same day", time.Date(2026, 3, 10, 9, 30, 0, 0, loc), "Hari ini, 09:30"},
		{"yesterday", time.Date(2026, 3, 9, 23, 55, 0, 0, loc), "Kemarin, 23:55"},
		// Less than 24h ago but across a date boundary is still yesterday.
		{"yesterday by date", time.Date(2026, 3, 9, 15, 30, 0, 0, loc), "Kemarin, 15:30"},
		{"older", time.Date(2026, 3, 1, 8, 15, 0, 0, loc), "01-03 08:15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatRelativeDate(tc.t, now, loc); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGenderGlyph(t *testing.T) {
	cases := map[string]string{
		"Laki-laki": "🧍",
		"perempuan": "🧍‍♀️",
		"-":         "-",
		"":          "-",
	}
	for in, want := range cases {
		if got := genderGlyph(in); got != want {
			t.Fatalf("genderGlyph(%q) = %q, want %q", in, got, want)
		}
	}
}
