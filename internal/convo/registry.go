package convo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bot-ojek/internal/repo"
)

const commandCacheKey = "commands:active"

// Registry resolves typed tokens against the ordered command table.
type Registry struct {
	store  repo.Store
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewRegistry creates a command registry backed by the store, with an
// optional redis cache in front of the command table.
func NewRegistry(store repo.Store, redisClient Cache, ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		cache:  redisClient,
		ttl:    ttl,
		logger: logger.With("component", "registry"),
	}
}

func (r *Registry) commands(ctx context.Context) ([]repo.Command, error) {
	if r.cache != nil {
		var cached []repo.Command
		hit, err := r.cache.GetJSON(ctx, commandCacheKey, &cached)
		if err != nil {
			r.logger.Warn("command cache read failed", "error", err)
		} else if hit {
			return cached, nil
		}
	}

	commands, err := r.store.ListActiveCommands(ctx)
	if err != nil {
		return nil, fmt.Errorf("load commands: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.SetJSON(ctx, commandCacheKey, commands, r.ttl); err != nil {
			r.logger.Warn("command cache write failed", "error", err)
		}
	}
	return commands, nil
}

// Resolve returns the first visible command whose token contains the typed
// token as a substring, in registry order. Returns nil when nothing matches.
//
// The substring policy is permissive: "-read" matches "-ready", and when
// several tokens share a prefix the registry order decides.
func (r *Registry) Resolve(ctx context.Context, access Access, body string) (*repo.Command, error) {
	token := firstToken(body)
	if token == "" {
		return nil, nil
	}

	commands, err := r.commands(ctx)
	if err != nil {
		return nil, err
	}

	for i := range commands {
		if !access.Allows(commands[i]) {
			continue
		}
		if strings.Contains(commands[i].Token, token) {
			return &commands[i], nil
		}
	}
	return nil, nil
}

// Visible returns all commands the predicate allows, in registry order.
func (r *Registry) Visible(ctx context.Context, access Access) ([]repo.Command, error) {
	commands, err := r.commands(ctx)
	if err != nil {
		return nil, err
	}

	var visible []repo.Command
	for _, cmd := range commands {
		if access.Allows(cmd) {
			visible = append(visible, cmd)
		}
	}
	return visible, nil
}
