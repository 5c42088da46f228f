package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hendrywilliam/splash/src/interactions"
	"github.com/hendrywilliam/splash/src/structs"
)

var ErrUnregisteredCommand = errors.New("unregistered command")

// CommandHandler handles one application command or component interaction.
type CommandHandler func(ctx context.Context, i *interactions.Interaction) error

// CommandRegistry routes interactions to handlers: application commands
// and autocompletes by command name, components and modals by custom id.
// Handlers are registered at startup and never removed.
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   map[string]CommandHandler
	components map[string]CommandHandler

	api *interactions.InteractionAPI
}

// NewCommandRegistry returns a registry whose gateway interactions respond
// through api.
func NewCommandRegistry(api *interactions.InteractionAPI) *CommandRegistry {
	return &CommandRegistry{
		commands:   make(map[string]CommandHandler),
		components: make(map[string]CommandHandler),
		api:        api,
	}
}

func register(m map[string]CommandHandler, name string, h CommandHandler) error {
	if name == "" {
		return ErrEmptyName
	}
	if h == nil {
		return ErrNilHandler
	}
	if _, ok := m[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, name)
	}
	m[name] = h
	return nil
}

// Register binds a handler to a command name.
func (r *CommandRegistry) Register(name string, h CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return register(r.commands, name, h)
}

// RegisterComponent binds a handler to a component or modal custom id.
func (r *CommandRegistry) RegisterComponent(customID string, h CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return register(r.components, customID, h)
}

// Names lists the registered command names, sorted.
func (r *CommandRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *CommandRegistry) lookup(i *interactions.Interaction) (CommandHandler, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch i.Type {
	case structs.InteractionTypeMessageComponent, structs.InteractionTypeModalSubmit:
		h, ok := r.components[i.Data.CustomID]
		return h, i.Data.CustomID, ok
	default:
		h, ok := r.commands[i.Data.Name]
		return h, i.Data.Name, ok
	}
}

// HandleInteraction runs the handler matching i. A missing handler yields
// ErrUnregisteredCommand.
func (r *CommandRegistry) HandleInteraction(ctx context.Context, i *interactions.Interaction) error {
	if i.Type == structs.InteractionTypePing {
		return nil
	}
	h, name, ok := r.lookup(i)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnregisteredCommand, name)
	}
	return h(ctx, i)
}

// HandleEvent is the INTERACTION_CREATE handler for the gateway.
func (r *CommandRegistry) HandleEvent(ctx context.Context, data json.RawMessage) error {
	i, err := interactions.NewInteraction(data, r.api, nil)
	if err != nil {
		return fmt.Errorf("failed to decode interaction: %w", err)
	}
	return r.HandleInteraction(ctx, i)
}
