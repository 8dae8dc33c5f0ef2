package convo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bot-ojek/internal/repo"
)

// sendPartnerStatus renders the partner roster, optionally filtered to ready
// or busy rows. In group chats the ready rows carry mentions so members can
// tap straight through to a driver.
func (e *Engine) sendPartnerStatus(ctx context.Context, msg Message, args string) error {
	filter, ok := parseStatusFilter(args)
	if !ok {
		return e.reply(ctx, msg, "Parameter status tidak sesuai. Gunakan _-status_, _-status ready_, atau _-status busy_.")
	}

	statuses, err := e.store.ListPartnerStatuses(ctx, filter)
	if err != nil {
		return fmt.Errorf("list partner statuses: %w", err)
	}
	if len(statuses) == 0 {
		switch filter {
		case repo.StatusFilterReady:
			return e.reply(ctx, msg, "Tidak ada mitra yang ready.")
		case repo.StatusFilterBusy:
			return e.reply(ctx, msg, "Semua mitra ready.")
		default:
			return e.reply(ctx, msg, "Gagal mencari status mitra. Harap coba lagi.")
		}
	}

	now := time.Now().In(e.cfg.Timezone)
	var ready, busy []string
	var mentions []string
	for _, st := range statuses {
		line := statusLine(st, now, e.cfg.Timezone, msg.IsGroup)
		if st.IsReady {
			ready = append(ready, line)
			if msg.IsGroup && st.WAID != "" {
				mentions = append(mentions, st.WAID)
			}
		} else {
			busy = append(busy, line)
		}
	}

	var b strings.Builder
	if filter != repo.StatusFilterBusy {
		if len(ready) == 0 {
			b.WriteString("Tidak ada mitra yang ready.")
		} else {
			b.WriteString("Mitra yang ready:\n")
			b.WriteString(strings.Join(ready, "\n"))
		}
	}
	if filter != repo.StatusFilterReady && len(busy) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Mitra yang tidak ready:\n")
		b.WriteString(strings.Join(busy, "\n"))
	}

	if msg.IsGroup && len(mentions) > 0 {
		if err := e.gateway.SendTextWithMentions(ctx, msg.ChatJID, b.String(), mentions); err != nil {
			return fmt.Errorf("send status with mentions: %w", err)
		}
		return nil
	}
	return e.reply(ctx, msg, b.String())
}

func parseStatusFilter(args string) (repo.StatusFilter, bool) {
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "":
		return repo.StatusFilterAll, true
	case "ready":
		return repo.StatusFilterReady, true
	case "busy":
		return repo.StatusFilterBusy, true
	default:
		return repo.StatusFilterAll, false
	}
}

// statusLine renders one roster row:
// {✅|❌} {glyph}{name} (relative date[, @number in group])[: reason].
// The @number suffix only appears on ready rows, next to their mention.
func statusLine(st repo.PartnerStatus, now time.Time, loc *time.Location, isGroup bool) string {
	name := st.Name
	if name == "" || name == repo.PlaceholderName {
		name = st.Username
	}

	emoji := "✅"
	if !st.IsReady {
		emoji = "❌"
	}

	when := formatRelativeDate(st.UpdatedAt, now, loc)
	if isGroup && st.IsReady && st.Number != "" {
		when += ", @" + st.Number
	}

	line := fmt.Sprintf("%s %s%s (%s)", emoji, genderGlyph(st.Gender), name, when)
	if st.Reason != "" {
		line += ": " + st.Reason
	}
	return line
}

func genderGlyph(gender string) string {
	switch strings.ToLower(gender) {
	case "laki-laki":
		return "🧍"
	case "perempuan":
		return "🧍‍♀️"
	default:
		return "-"
	}
}

// formatRelativeDate renders a timestamp the way a chat user reads it: same
// day as "Hari ini", the day before as "Kemarin", anything older as a short
// date.
func formatRelativeDate(t, now time.Time, loc *time.Location) string {
	t = t.In(loc)
	now = now.In(loc)

	switch {
	case sameDate(t, now):
		return "Hari ini, " + t.Format("15:04")
	case sameDate(t, now.AddDate(0, 0, -1)):
		return "Kemarin, " + t.Format("15:04")
	default:
		return t.Format("02-01 15:04")
	}
}

// sameDate compares calendar dates, not durations, so day boundaries stay
// correct across DST transitions in the configured timezone.
func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
