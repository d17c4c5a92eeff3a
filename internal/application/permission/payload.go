package permission

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/spf13/cast"
)

// DecodeSnapshot decodes the permissions RPC payload:
//
//	{ "is_super_user": bool, "product_permissions": [...], "screen_permissions": [...] }
//
// Values are loosely typed: booleans may arrive as "true", 1 or "Y".
func DecodeSnapshot(userID string, payload map[string]interface{}) (*entity.PermissionSnapshot, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	super, err := looseBool(payload["is_super_user"])
	if err != nil {
		return nil, fmt.Errorf("%w: is_super_user: %v", ErrInvalidPayload, err)
	}

	snapshot := &entity.PermissionSnapshot{
		UserID:      userID,
		IsSuperUser: super,
		LoadedAt:    time.Now(),
	}

	products, err := objectList(payload["product_permissions"])
	if err != nil {
		return nil, fmt.Errorf("%w: product_permissions: %v", ErrInvalidPayload, err)
	}
	for i, item := range products {
		grant, err := decodeGrant(userID, item)
		if err != nil {
			return nil, fmt.Errorf("%w: product_permissions[%d]: %v", ErrInvalidPayload, i, err)
		}
		snapshot.ProductPermissions = append(snapshot.ProductPermissions, grant)
	}

	screens, err := objectList(payload["screen_permissions"])
	if err != nil {
		return nil, fmt.Errorf("%w: screen_permissions: %v", ErrInvalidPayload, err)
	}
	for i, item := range screens {
		sp, err := decodeScreen(item)
		if err != nil {
			return nil, fmt.Errorf("%w: screen_permissions[%d]: %v", ErrInvalidPayload, i, err)
		}
		snapshot.ScreenPermissions = append(snapshot.ScreenPermissions, sp)
	}

	return snapshot, nil
}

func decodeGrant(userID string, item map[string]interface{}) (entity.AccessGrant, error) {
	g := entity.AccessGrant{
		ID:          cast.ToInt64(item["id"]),
		UserID:      userID,
		ProductCode: strings.ToUpper(strings.TrimSpace(cast.ToString(item["product_code"]))),
		EventCode:   strings.ToUpper(strings.TrimSpace(cast.ToString(item["event_code"]))),
		StageName:   strings.TrimSpace(cast.ToString(item["stage_name"])),
		ActorType:   strings.TrimSpace(cast.ToString(item["actor_type"])),
	}
	if g.ProductCode == "" || g.EventCode == "" {
		return g, fmt.Errorf("product_code and event_code are required")
	}

	flags := []struct {
		key string
		dst *bool
	}{
		{"can_view", &g.CanView},
		{"can_create", &g.CanCreate},
		{"can_edit", &g.CanEdit},
		{"can_approve", &g.CanApprove},
	}
	for _, f := range flags {
		v, err := looseBool(item[f.key])
		if err != nil {
			return g, fmt.Errorf("%s: %v", f.key, err)
		}
		*f.dst = v
	}
	return g, nil
}

func decodeScreen(item map[string]interface{}) (entity.ScreenPermission, error) {
	sp := entity.ScreenPermission{ScreenCode: strings.TrimSpace(cast.ToString(item["screen_code"]))}
	if sp.ScreenCode == "" {
		return sp, fmt.Errorf("screen_code is required")
	}
	var err error
	if sp.CanView, err = looseBool(item["can_view"]); err != nil {
		return sp, fmt.Errorf("can_view: %v", err)
	}
	if sp.CanEdit, err = looseBool(item["can_edit"]); err != nil {
		return sp, fmt.Errorf("can_edit: %v", err)
	}
	return sp, nil
}

func objectList(v interface{}) ([]map[string]interface{}, error) {
	if v == nil {
		return nil, nil
	}
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func looseBool(v interface{}) (bool, error) {
	if v == nil {
		return false, nil
	}
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "y", "yes":
			return true, nil
		case "n", "no", "":
			return false, nil
		}
	}
	return cast.ToBoolE(v)
}
