package plugins

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrCommandNotFound = errors.New("command not found")
	ErrInescapable     = errors.New("command is inescapable")
)

type Options struct {
	CaseInsensitive bool
}

type Registry struct {
	mu   sync.RWMutex
	log  *zap.Logger
	host Host
	opts Options

	plugins  []Plugin
	loaded   map[string]bool
	commands map[string]*Command
	aliases  map[string]string
	disabled map[string]bool
}

func NewRegistry(log *zap.Logger, host Host, opts Options) (*Registry, error) {
	if log == nil {
		return nil, errors.New("plugins: logger is required")
	}
	if host == nil {
		return nil, errors.New("plugins: host is required")
	}
	return &Registry{
		log:      log.Named("plugins"),
		host:     host,
		opts:     opts,
		loaded:   make(map[string]bool),
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
		disabled: make(map[string]bool),
	}, nil
}

func (r *Registry) Host() Host {
	return r.host
}

func (r *Registry) Log() *zap.Logger {
	return r.log
}

// Register queues plugins for LoadAll.
func (r *Registry) Register(ps ...Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = append(r.plugins, ps...)
}

// LoadAll sets up every registered plugin that is not loaded yet. The first
// failing plugin stops loading.
func (r *Registry) LoadAll() error {
	r.mu.RLock()
	pending := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		if !r.loaded[p.Name()] {
			pending = append(pending, p)
		}
	}
	r.mu.RUnlock()

	for _, p := range pending {
		if err := p.Setup(r); err != nil {
			return fmt.Errorf("loading plugin %s: %w", p.Name(), err)
		}
		r.mu.Lock()
		r.loaded[p.Name()] = true
		r.mu.Unlock()
		r.log.Info("loaded plugin", zap.String("plugin", p.Name()))
	}
	return nil
}

func (r *Registry) key(name string) string {
	if r.opts.CaseInsensitive {
		return strings.ToLower(name)
	}
	return name
}

// AddCommands registers commands on behalf of plugin. Names and aliases must
// be unique across all plugins. Nothing is registered if any command in the
// batch is rejected.
func (r *Registry) AddCommands(plugin string, cmds ...*Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool)
	for _, c := range cmds {
		if c.Name == "" || c.Run == nil {
			return fmt.Errorf("plugin %s: command needs a name and a run func", plugin)
		}
		names := append([]string{c.Name}, c.Aliases...)
		for _, n := range names {
			k := r.key(n)
			if _, ok := r.commands[k]; ok || seen[k] {
				return fmt.Errorf("plugin %s: command %q already registered", plugin, n)
			}
			if _, ok := r.aliases[k]; ok {
				return fmt.Errorf("plugin %s: alias %q already registered", plugin, n)
			}
			seen[k] = true
		}
	}

	for _, c := range cmds {
		c.plugin = plugin
		r.commands[r.key(c.Name)] = c
		for _, a := range c.Aliases {
			r.aliases[r.key(a)] = r.key(c.Name)
		}
	}
	return nil
}

// Command finds a command by name or alias.
func (r *Registry) Command(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(name)
}

func (r *Registry) lookup(name string) (*Command, bool) {
	k := r.key(name)
	if c, ok := r.commands[k]; ok {
		return c, true
	}
	if target, ok := r.aliases[k]; ok {
		c, ok := r.commands[target]
		return c, ok
	}
	return nil, false
}

// Commands lists every command ordered by plugin, then name.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].plugin == out[j].plugin {
			return out[i].Name < out[j].Name
		}
		return out[i].plugin < out[j].plugin
	})
	return out
}

// Plugins lists loaded plugin names in load order.
func (r *Registry) Plugins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, p := range r.plugins {
		if r.loaded[p.Name()] {
			out = append(out, p.Name())
		}
	}
	return out
}

func (r *Registry) Disable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}
	if c.Inescapable {
		return fmt.Errorf("%w: %s", ErrInescapable, c.Name)
	}
	r.disabled[r.key(c.Name)] = true
	return nil
}

func (r *Registry) Enable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}
	delete(r.disabled, r.key(c.Name))
	return nil
}

func (r *Registry) Disabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.lookup(name)
	return ok && r.disabled[r.key(c.Name)]
}

func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}
	if c.Inescapable {
		return fmt.Errorf("%w: %s", ErrInescapable, c.Name)
	}
	delete(r.commands, r.key(c.Name))
	delete(r.disabled, r.key(c.Name))
	for _, a := range c.Aliases {
		delete(r.aliases, r.key(a))
	}
	return nil
}
