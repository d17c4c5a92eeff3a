package entity

import "time"

// AccessGrant is a single permission row of a user for a product/event pair.
// StageName and ActorType may each hold WildcardAll.
type AccessGrant struct {
	ID          int64  `json:"id"`
	UserID      string `json:"user_id"`
	ProductCode string `json:"product_code"`
	EventCode   string `json:"event_code"`
	StageName   string `json:"stage_name"`
	ActorType   string `json:"actor_type,omitempty"`
	CanView     bool   `json:"can_view"`
	CanCreate   bool   `json:"can_create"`
	CanEdit     bool   `json:"can_edit"`
	CanApprove  bool   `json:"can_approve"`
}

// IsActive reports whether any capability is granted
func (g *AccessGrant) IsActive() bool {
	return g.CanView || g.CanCreate || g.CanEdit || g.CanApprove
}

// ScreenPermission grants access to a portal screen outside the workflow
type ScreenPermission struct {
	ScreenCode string `json:"screen_code"`
	CanView    bool   `json:"can_view"`
	CanEdit    bool   `json:"can_edit"`
}

// PermissionSnapshot is everything known about a user's permissions, loaded once per session
type PermissionSnapshot struct {
	UserID             string             `json:"user_id"`
	IsSuperUser        bool               `json:"is_super_user"`
	ProductPermissions []AccessGrant      `json:"product_permissions"`
	ScreenPermissions  []ScreenPermission `json:"screen_permissions"`
	LoadedAt           time.Time          `json:"loaded_at"`
}
