// Package chat implements the AI conversation flow: bot configuration,
// session and message handling, and response generation with retrieved
// context injected into the prompt.
package chat

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/parleyhq/parley/pkg/types"
)

// ErrBotNotFound is returned when a session references a bot that isn't
// configured.
var ErrBotNotFound = fmt.Errorf("bot not found")

// botsFile is the on-disk shape of the bot configuration.
type botsFile struct {
	Bots []types.Bot `yaml:"bots"`
}

// Registry holds the configured bots, keyed by ID. Registration order is
// preserved for listing.
type Registry struct {
	mu    sync.RWMutex
	bots  map[string]types.Bot
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bots: make(map[string]types.Bot)}
}

// LoadRegistry reads bot definitions from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chat: failed to read bots file: %w", err)
	}

	var file botsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("chat: failed to parse bots file: %w", err)
	}

	r := NewRegistry()
	for _, bot := range file.Bots {
		if err := r.Register(bot); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register adds a bot to the registry. IDs must be unique.
func (r *Registry) Register(bot types.Bot) error {
	if bot.ID == "" || bot.Name == "" {
		return fmt.Errorf("chat: bot ID and name are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bots[bot.ID]; exists {
		return fmt.Errorf("chat: duplicate bot ID %q", bot.ID)
	}

	r.bots[bot.ID] = bot
	r.order = append(r.order, bot.ID)
	return nil
}

// Get returns the bot with the given ID.
func (r *Registry) Get(id string) (types.Bot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bot, ok := r.bots[id]
	if !ok {
		return types.Bot{}, fmt.Errorf("%w: %q", ErrBotNotFound, id)
	}
	return bot, nil
}

// List returns all bots in registration order.
func (r *Registry) List() []types.Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Bot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.bots[id])
	}
	return out
}
