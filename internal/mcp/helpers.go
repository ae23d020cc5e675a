package mcpserver

import (
	"fmt"
	"strconv"
	"strings"

	"awful/internal/tenant"
)

func boolPtr(v bool) *bool { return &v }

// argTenant reads the required "tenant" argument.
func argTenant(args map[string]any) (tenant.ID, error) {
	v, ok := args["tenant"].(float64)
	if !ok || v <= 0 || v != float64(int64(v)) {
		return 0, fmt.Errorf("tenant must be a positive integer")
	}
	return tenant.ID(v), nil
}

// argOwner reads the tenant, kind and id arguments as transport strings.
func argOwner(args map[string]any) (tenantStr, kind, id string) {
	if v, ok := args["tenant"].(float64); ok {
		tenantStr = strconv.FormatFloat(v, 'f', -1, 64)
	}
	kind, _ = args["kind"].(string)
	if v, ok := args["id"].(float64); ok {
		id = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return tenantStr, kind, id
}

// argList splits a comma separated argument. Missing means nil.
func argList(args map[string]any, key string) []string {
	raw, _ := args[key].(string)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
