package dashboard

import "sync"

// Router holds the active tab of one dashboard session.
type Router struct {
	mu   sync.Mutex
	role Role
	tab  string
}

func NewRouter(role string) *Router {
	r := RoleFor(role)
	return &Router{role: r, tab: r.DefaultTab()}
}

// SetRole switches the role and resets the active tab to its default.
func (r *Router) SetRole(role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.role = RoleFor(role)
	r.tab = r.role.DefaultTab()
}

// SelectTab sets the active tab. Any id is accepted; Resolve falls back to
// the default view for ids outside the menu.
func (r *Router) SelectTab(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tab = id
}

// State is a snapshot of the router.
type State struct {
	Role   string     `json:"role"`
	Active string     `json:"active_tab"`
	Menu   []MenuItem `json:"menu"`
	View   View       `json:"view"`
}

func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		Role:   r.role.Name(),
		Active: r.tab,
		Menu:   r.role.Menu(),
		View:   r.role.Resolve(r.tab),
	}
}

func (r *Router) ActiveTab() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tab
}

func (r *Router) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.role.Resolve(r.tab)
}
