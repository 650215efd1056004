package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hiring-pipeline/hiring-pipeline/internal/auth"
)

// gateRouter builds a router with the identity preset in context and the gate
// under test in front of a trivial handler.
func gateRouter(roles, perms []string, gate gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if roles != nil {
			c.Set(ContextRoles, roles)
		}
		if perms != nil {
			c.Set(ContextPermissions, perms)
		}
		c.Next()
	})
	r.GET("/", gate, func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doGate(r *gin.Engine) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

// ---------------------------------------------------------------------------
// RequireAnyRole
// ---------------------------------------------------------------------------

func TestRequireAnyRole(t *testing.T) {
	tests := []struct {
		name     string
		held     []string
		required []string
		want     int
	}{
		{"holds the role", []string{auth.RoleRecruiter}, []string{auth.RoleRecruiter}, http.StatusOK},
		{"holds one of several", []string{auth.RoleInterviewer}, []string{auth.RoleAdmin, auth.RoleInterviewer}, http.StatusOK},
		{"holds none", []string{auth.RoleInterviewer}, []string{auth.RoleAdmin}, http.StatusForbidden},
		{"empty requirement admits any authenticated user", []string{auth.RoleInterviewer}, nil, http.StatusOK},
		{"no roles in context", nil, []string{auth.RoleAdmin}, http.StatusForbidden},
		{"user with no roles", []string{}, []string{auth.RoleAdmin}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gateRouter(tt.held, nil, RequireAnyRole(tt.required...))
			if got := doGate(r); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRequireAnyRole_WrongTypeInContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextRoles, "Admin")
		c.Next()
	})
	r.GET("/", RequireAnyRole(auth.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	if got := doGate(r); got != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for malformed roles value", got)
	}
}

// ---------------------------------------------------------------------------
// RequirePermission
// ---------------------------------------------------------------------------

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name     string
		held     []string
		required string
		want     int
	}{
		{"has permission", []string{"candidates:read", "candidates:write"}, "candidates:write", http.StatusOK},
		{"missing permission", []string{"candidates:read"}, "candidates:delete", http.StatusForbidden},
		{"no permissions in context", nil, "candidates:read", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gateRouter(nil, tt.held, RequirePermission(tt.required))
			if got := doGate(r); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// RequireAdmin
// ---------------------------------------------------------------------------

func TestRequireAdmin(t *testing.T) {
	r := gateRouter([]string{auth.RoleAdmin}, nil, RequireAdmin())
	if got := doGate(r); got != http.StatusOK {
		t.Errorf("status = %d, want 200 for admin", got)
	}

	r = gateRouter([]string{auth.RoleRecruiter}, nil, RequireAdmin())
	if got := doGate(r); got != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for non-admin", got)
	}
}
