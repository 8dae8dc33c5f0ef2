package convo

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"bot-ojek/internal/repo"
)

// memStore is an in-memory repo.Store for engine tests.
type memStore struct {
	mu       sync.Mutex
	seq      int
	users    map[string]*repo.User
	groups   map[string]*repo.GroupChat
	partners map[string]*repo.Partner
	services []repo.Service
	commands []repo.Command
	statuses []repo.PartnerStatus
	orders   []repo.Order
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*repo.User),
		groups:   make(map[string]*repo.GroupChat),
		partners: make(map[string]*repo.Partner),
	}
}

var _ repo.Store = (*memStore)(nil)

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) Close() {}

func (s *memStore) Ping(ctx context.Context) error { return nil }

func (s *memStore) RunMigrations(ctx context.Context, _ fs.FS) error { return nil }

func (s *memStore) ToggleUserActive(ctx context.Context, id string) error { return nil }

func (s *memStore) ToggleGroupChatActive(ctx context.Context, id string) error { return nil }

func (s *memStore) TogglePartnerActive(ctx context.Context, id string) error { return nil }

func (s *memStore) CreateUser(ctx context.Context, user repo.User) (*repo.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = s.nextID("user")
	u := user
	s.users[u.ID] = &u
	copied := u
	return &copied, nil
}

func (s *memStore) GetUserByID(ctx context.Context, id string) (*repo.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memStore) findUser(match func(*repo.User) bool) (*repo.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Active && match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) FindUserByWAID(ctx context.Context, waid string) (*repo.User, error) {
	return s.findUser(func(u *repo.User) bool { return u.WAID == waid })
}

func (s *memStore) FindAdminByWAID(ctx context.Context, waid string) (*repo.User, error) {
	return s.findUser(func(u *repo.User) bool { return u.WAID == waid && u.IsAdmin })
}

func (s *memStore) FindUserByNumber(ctx context.Context, number string) (*repo.User, error) {
	return s.findUser(func(u *repo.User) bool { return u.Number == number })
}

func (s *memStore) FindUserByUsername(ctx context.Context, username string) (*repo.User, error) {
	return s.findUser(func(u *repo.User) bool { return u.Username == username })
}

func (s *memStore) FindUserByEmail(ctx context.Context, email string) (*repo.User, error) {
	return s.findUser(func(u *repo.User) bool { return u.Email == email })
}

func (s *memStore) UpdateUser(ctx context.Context, user *repo.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return repo.ErrNotFound
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *memStore) UpdateUserState(ctx context.Context, id string, from, to repo.UserState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, repo.ErrNotFound
	}
	if u.State != from {
		return false, nil
	}
	u.State = to
	return true, nil
}

func (s *memStore) SetUserPartner(ctx context.Context, id string, isPartner bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.IsPartner = isPartner
	return nil
}

func (s *memStore) ListAdmins(ctx context.Context) ([]repo.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var admins []repo.User
	for _, u := range s.users {
		if u.Active && u.IsAdmin {
			admins = append(admins, *u)
		}
	}
	return admins, nil
}

func (s *memStore) CreateGroupChat(ctx context.Context, group repo.GroupChat) (*repo.GroupChat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group.ID = s.nextID("group")
	g := group
	s.groups[g.ID] = &g
	copied := g
	return &copied, nil
}

func (s *memStore) FindGroupChatByJID(ctx context.Context, jid string) (*repo.GroupChat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.Active && g.GroupJID == jid {
			copied := *g
			return &copied, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) CreatePartner(ctx context.Context, partner repo.Partner) (*repo.Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	partner.ID = s.nextID("partner")
	p := partner
	s.partners[p.ID] = &p
	copied := p
	return &copied, nil
}

func (s *memStore) GetPartner(ctx context.Context, id string) (*repo.Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partners[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *memStore) FindPartnerByUserID(ctx context.Context, userID string) (*repo.Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.partners {
		if p.UserID != nil && *p.UserID == userID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) UpdatePartner(ctx context.Context, partner *repo.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partners[partner.ID]; !ok {
		return repo.ErrNotFound
	}
	copied := *partner
	s.partners[partner.ID] = &copied
	return nil
}

func (s *memStore) BindPartnerUser(ctx context.Context, partnerID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partners[partnerID]
	if !ok {
		return false, repo.ErrNotFound
	}
	if p.UserID != nil {
		return false, nil
	}
	p.UserID = &userID
	return true, nil
}

func (s *memStore) SetPartnerServices(ctx context.Context, partnerID string, services []repo.PartnerService) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partners[partnerID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Services = services
	return nil
}

func (s *memStore) ListPartnerStatuses(ctx context.Context, filter repo.StatusFilter) ([]repo.PartnerStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repo.PartnerStatus
	for _, st := range s.statuses {
		switch filter {
		case repo.StatusFilterReady:
			if !st.IsReady {
				continue
			}
		case repo.StatusFilterBusy:
			if st.IsReady {
				continue
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *memStore) ListServiceNamesForPartner(ctx context.Context, partnerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partners[partnerID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	var names []string
	for _, link := range p.Services {
		for _, svc := range s.services {
			if svc.ID == link.ServiceID {
				names = append(names, svc.Shortname)
			}
		}
	}
	return names, nil
}

func (s *memStore) ListActiveServices(ctx context.Context) ([]repo.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repo.Service, 0, len(s.services))
	for _, svc := range s.services {
		if svc.Active {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (s *memStore) FindServicesByShortnames(ctx context.Context, shortnames []string) ([]repo.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]bool, len(shortnames))
	for _, n := range shortnames {
		wanted[n] = true
	}
	var out []repo.Service
	for _, svc := range s.services {
		if svc.Active && wanted[svc.Shortname] {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (s *memStore) ListActiveCommands(ctx context.Context) ([]repo.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repo.Command(nil), s.commands...), nil
}

func (s *memStore) CreateOrder(ctx context.Context, order repo.Order) (*repo.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order.ID = s.nextID("order")
	s.orders = append(s.orders, order)
	copied := order
	return &copied, nil
}

// fakeCache is an in-memory Cache covering the dedup path.
type fakeCache struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{seen: make(map[string]bool)}
}

func (c *fakeCache) MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[messageID] {
		return false, nil
	}
	c.seen[messageID] = true
	return true, nil
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	return false, nil
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	return nil
}

// fakeGateway records outbound traffic.
type fakeGateway struct {
	mu        sync.Mutex
	sent      []sentMessage
	groupSize int
	sendErr   error
}

type sentMessage struct {
	JID      string
	Text     string
	Mentions []string
	Sticker  bool
}

func (g *fakeGateway) SendText(ctx context.Context, jid, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sent = append(g.sent, sentMessage{JID: jid, Text: text})
	return nil
}

func (g *fakeGateway) SendTextWithMentions(ctx context.Context, jid, text string, mentionJIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{JID: jid, Text: text, Mentions: mentionJIDs})
	return nil
}

func (g *fakeGateway) SendSticker(ctx context.Context, jid string, webpData []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{JID: jid, Sticker: true})
	return nil
}

func (g *fakeGateway) GroupParticipantCount(ctx context.Context, jid string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.groupSize, nil
}

func (g *fakeGateway) messages() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentMessage(nil), g.sent...)
}

func (g *fakeGateway) lastText() string {
	msgs := g.messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Text
}

// defaultCommands is the command table most tests run against.
func defaultCommands() []repo.Command {
	return []repo.Command{
		{ID: "c1", Name: "Command List", Token: "-commandlist", Description: "daftar command", IsPersonal: true, IsGroup: true, Active: true},
		{ID: "c2", Name: "Start", Token: "-start", Description: "mulai", IsPersonal: true, IsGroup: true, Active: true},
		{ID: "c3", Name: "Info", Token: "-info", Description: "info akun", IsPersonal: true, Active: true},
		{ID: "c4", Name: "Status", Token: "-status", Description: "status mitra", IsPersonal: true, IsGroup: true, Active: true},
		{ID: "c5", Name: "Ready", Token: "-ready", Description: "tandai ready", IsPersonal: true, IsGroup: true, IsPartner: true, Active: true},
		{ID: "c6", Name: "Busy", Token: "-busy", Description: "tandai busy", IsPersonal: true, IsGroup: true, IsPartner: true, Active: true},
		{ID: "c7", Name: "Add Partner", Token: "-addpartner", Description: "tambah mitra", IsPersonal: true, IsAdmin: true, Active: true},
		{ID: "c8", Name: "Add Order", Token: "-addorder", Description: "catat order", IsPersonal: true, IsPartner: true, Active: true},
	}
}

func newTestEngine(t *testing.T, store *memStore, gateway *fakeGateway) *Engine {
	t.Helper()
	return newTestEngineWithCache(t, store, gateway, nil)
}

func newTestEngineWithCache(t *testing.T, store *memStore, gateway *fakeGateway, c Cache) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
	engine, err := New(store, gateway, c, nil, logger, EngineConfig{
		Timezone: time.UTC,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func seedUser(t *testing.T, store *memStore, u repo.User) *repo.User {
	t.Helper()
	created, err := store.CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return created
}

func seedPartnerFor(t *testing.T, store *memStore, userID string, ready bool) *repo.Partner {
	t.Helper()
	created, err := store.CreatePartner(context.Background(), repo.Partner{
		UserID:  &userID,
		IsReady: ready,
		State:   repo.PartnerStateFinished,
		Active:  true,
	})
	if err != nil {
		t.Fatalf("seed partner: %v", err)
	}
	return created
}

func personalMsg(sender, body string) Message {
	return Message{
		ID:           "msg-" + body,
		SenderJID:    sender + "@s.whatsapp.net",
		SenderNumber: sender,
		ChatJID:      sender + "@s.whatsapp.net",
		Body:         body,
		Timestamp:    time.Now(),
	}
}

func groupMsg(sender, group, body string) Message {
	return Message{
		ID:        "msg-" + body,
		SenderJID: sender + "@s.whatsapp.net",
		ChatJID:   group + "@g.us",
		IsGroup:   true,
		Body:      body,
		Timestamp: time.Now(),
	}
}

func expectReplyContains(t *testing.T, gateway *fakeGateway, substr string) {
	t.Helper()
	for _, m := range gateway.messages() {
		if strings.Contains(m.Text, substr) {
			return
		}
	}
	t.Fatalf("no outbound message contains %q; got %v", substr, gateway.messages())
}
