package dispatch

import (
	"context"
	"errors"
	"fmt"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/roles"
)

// ErrPass is returned by a handler that does not want the command after all.
// The router then offers the command to the next declaring group.
var ErrPass = errors.New("command passed on")

// Handler processes one routed command.
type Handler func(ctx context.Context, req *Request) error

// Route declares a command of a group.
type Route struct {
	Command string
	Aliases []string
	// Role is the minimum role. Only the first group declaring a command decides it.
	Role    roles.Role
	Handler Handler
	// Usage is shown in help. Empty hides the route.
	Usage string
}

// Group is a named, ordered set of routes.
type Group struct {
	Name   string
	Routes []Route
}

type candidate struct {
	group   string
	handler Handler
}

type entry struct {
	role       roles.Role
	candidates []candidate
}

// Router maps command names to their required role and the groups declaring them,
// in the order the groups were registered.
type Router struct {
	groups  []Group
	entries map[string]*entry
}

// NewRouter builds the routing table. Group order is dispatch order.
func NewRouter(groups ...Group) (*Router, error) {
	r := &Router{entries: make(map[string]*entry)}
	for _, g := range groups {
		if err := r.register(g); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Router) register(g Group) error {
	for _, existing := range r.groups {
		if existing.Name == g.Name {
			return fmt.Errorf("duplicate handler group %q", g.Name)
		}
	}

	for _, route := range g.Routes {
		if route.Handler == nil {
			return fmt.Errorf("route %q of group %q has no handler", route.Command, g.Name)
		}
		for _, name := range append([]string{route.Command}, route.Aliases...) {
			e, ok := r.entries[name]
			if !ok {
				e = &entry{role: route.Role}
				r.entries[name] = e
			}
			e.candidates = append(e.candidates, candidate{group: g.Name, handler: route.Handler})
		}
	}

	r.groups = append(r.groups, g)
	return nil
}

// Required returns the role needed to run command and whether any group declares it.
func (r *Router) Required(command string) (roles.Role, bool) {
	e, ok := r.entries[command]
	if !ok {
		return roles.Member, false
	}
	return e.role, true
}

// Dispatch offers the request to every declaring group in order until one handles it.
// It returns the claiming group name, or "" when nobody claimed the command.
func (r *Router) Dispatch(ctx context.Context, req *Request) (string, error) {
	e, ok := r.entries[req.Command]
	if !ok {
		return "", nil
	}
	for _, c := range e.candidates {
		err := c.handler(ctx, req)
		if errors.Is(err, ErrPass) {
			continue
		}
		return c.group, err
	}
	return "", nil
}

// Groups returns the registered groups in dispatch order.
func (r *Router) Groups() []Group {
	return r.groups
}
