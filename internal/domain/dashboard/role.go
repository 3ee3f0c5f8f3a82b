// Package dashboard resolves which menu and view a dashboard session shows
// for its role, and keeps the per-session router and record editor.
package dashboard

import "github.com/surgicast/surgicast/internal/domain/profile"

// TabDashboard is the initial tab of every role.
const TabDashboard = "dashboard"

type MenuItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// View describes what the client renders for a tab.
type View struct {
	Name       string `json:"name"`
	Title      string `json:"title,omitempty"`
	ComingSoon bool   `json:"coming_soon,omitempty"`
}

// Views shown outside of any role.
var (
	ViewLoading     = View{Name: "loading"}
	ViewSignIn      = View{Name: "sign-in"}
	ViewUnknownRole = View{Name: "unknown-role", Title: "Unknown role"}
)

func comingSoon(title string) View {
	return View{Name: "coming-soon", Title: title, ComingSoon: true}
}

// Role is the menu and view set of one profile role.
type Role interface {
	Name() string
	Menu() []MenuItem
	DefaultTab() string
	// Resolve maps a tab to its view. Tabs outside the menu resolve to the
	// default tab's view.
	Resolve(tabID string) View
}

// tableRole is a Role defined by a fixed menu and a tab->view table.
type tableRole struct {
	name  string
	menu  []MenuItem
	views map[string]View
}

func (r *tableRole) Name() string       { return r.name }
func (r *tableRole) DefaultTab() string { return TabDashboard }

func (r *tableRole) Menu() []MenuItem {
	out := make([]MenuItem, len(r.menu))
	copy(out, r.menu)
	return out
}

func (r *tableRole) Resolve(tabID string) View {
	if v, ok := r.views[tabID]; ok {
		return v
	}
	return r.views[r.DefaultTab()]
}

var patientRole = &tableRole{
	name: profile.RolePatient,
	menu: []MenuItem{
		{ID: "dashboard", Label: "Dashboard"},
		{ID: "appointments", Label: "Appointments"},
		{ID: "find-surgeon", Label: "Find Surgeon"},
		{ID: "health-profile", Label: "Health Profile"},
	},
	views: map[string]View{
		"dashboard":      {Name: "patient-dashboard", Title: "Dashboard"},
		"appointments":   {Name: "appointments", Title: "Appointments"},
		"find-surgeon":   {Name: "find-surgeon", Title: "Find Surgeon"},
		"health-profile": {Name: "health-profile", Title: "Health Profile"},
	},
}

var surgeonRole = &tableRole{
	name: profile.RoleSurgeon,
	menu: []MenuItem{
		{ID: "dashboard", Label: "Dashboard"},
		{ID: "patients", Label: "My Patients"},
		{ID: "schedule", Label: "My Schedule"},
		{ID: "profile", Label: "Profile"},
	},
	views: map[string]View{
		"dashboard": comingSoon("Surgeon Dashboard"),
		"patients":  comingSoon("My Patients"),
		"schedule":  comingSoon("My Schedule"),
		"profile":   comingSoon("Profile"),
	},
}

var adminRole = &tableRole{
	name: profile.RoleAdmin,
	menu: []MenuItem{
		{ID: "dashboard", Label: "SurgiCast"},
		{ID: "analytics", Label: "Analytics"},
		{ID: "reports", Label: "Reports"},
	},
	views: map[string]View{
		"dashboard": {Name: "surgicast", Title: "SurgiCast"},
		"analytics": comingSoon("Analytics"),
		"reports":   {Name: "reports", Title: "Reports"},
	},
}

// unknownRole has no menu and resolves every tab to ViewUnknownRole.
type unknownRole struct{ name string }

func (r unknownRole) Name() string        { return r.name }
func (unknownRole) Menu() []MenuItem      { return []MenuItem{} }
func (unknownRole) DefaultTab() string    { return TabDashboard }
func (unknownRole) Resolve(_ string) View { return ViewUnknownRole }

// RoleFor returns the Role for a profile role name. Unrecognized names get a
// role with an empty menu.
func RoleFor(name string) Role {
	switch name {
	case profile.RolePatient:
		return patientRole
	case profile.RoleSurgeon:
		return surgeonRole
	case profile.RoleAdmin:
		return adminRole
	}
	return unknownRole{name: name}
}

func MenuFor(role string) []MenuItem { return RoleFor(role).Menu() }

func ResolveView(role, tabID string) View { return RoleFor(role).Resolve(tabID) }
