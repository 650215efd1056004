package auth

import "testing"

func TestHasRole(t *testing.T) {
	roles := []string{RoleRecruiter, RoleInterviewer}

	if !HasRole(roles, RoleRecruiter) {
		t.Error("HasRole missed an assigned role")
	}
	if HasRole(roles, RoleAdmin) {
		t.Error("HasRole matched an unassigned role")
	}
	if HasRole(nil, RoleAdmin) {
		t.Error("HasRole matched against nil roles")
	}
}

func TestHasAnyRole(t *testing.T) {
	tests := []struct {
		name     string
		user     []string
		required []string
		want     bool
	}{
		{"one of several matches", []string{RoleRecruiter}, []string{RoleAdmin, RoleRecruiter}, true},
		{"no match", []string{RoleInterviewer}, []string{RoleAdmin}, false},
		{"empty requirement allows any caller", []string{RoleInterviewer}, nil, true},
		{"empty requirement with no roles", nil, nil, true},
		{"no roles against requirement", nil, []string{RoleAdmin}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasAnyRole(tt.user, tt.required); got != tt.want {
				t.Errorf("HasAnyRole(%v, %v) = %v, want %v", tt.user, tt.required, got, tt.want)
			}
		})
	}
}
