package evcs

import "testing"

func TestDeriveRootColumn(t *testing.T) {
	tests := []struct {
		typeName string
		want     string
	}{
		{"UserVersion", "user_id"},
		{"DepartmentVersion", "department_id"},
		{"UserPreferenceVersion", "user_preference_id"},
		{"ProjectVersion", "project_id"},
		{"noteVersion", "note_id"},
		{"Widget", "widget_id"},
		{"HTTPRouteVersion", "http_route_id"},
	}
	for _, tc := range tests {
		t.Run(tc.typeName, func(t *testing.T) {
			if got := DeriveRootColumn(tc.typeName); got != tc.want {
				t.Fatalf("DeriveRootColumn(%q) = %q, want %q", tc.typeName, got, tc.want)
			}
		})
	}
}

func TestRootColumnPrefersRegistration(t *testing.T) {
	type oddlyNamedVersion struct{}

	// Unregistered types fall back to the naming convention.
	if got := RootColumn((*oddlyNamedVersion)(nil)); got != "oddly_named_id" {
		t.Fatalf("fallback = %q, want oddly_named_id", got)
	}

	RegisterRootColumn(&oddlyNamedVersion{}, "legacy_fk")
	if got := RootColumn((*oddlyNamedVersion)(nil)); got != "legacy_fk" {
		t.Fatalf("registered = %q, want legacy_fk", got)
	}

	// Re-registering the same mapping is a no-op; a conflicting one panics.
	RegisterRootColumn(&oddlyNamedVersion{}, "legacy_fk")
	defer func() {
		if recover() == nil {
			t.Fatal("conflicting re-registration did not panic")
		}
	}()
	RegisterRootColumn(&oddlyNamedVersion{}, "other_fk")
}
