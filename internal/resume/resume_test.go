package resume

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestChecker(t *testing.T) (*Checker, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "resume_swe.pdf"), []byte("pdf-data"), 0644); err != nil {
		t.Fatal(err)
	}
	return NewChecker(dir, "resume_swe.pdf", "resume_ds.pdf", TypeSoftware), dir
}

func TestStatus(t *testing.T) {
	c, _ := newTestChecker(t)

	status := c.Status()
	if !status[TypeSoftware].Exists {
		t.Error("software resume should exist")
	}
	if status[TypeSoftware].Size != int64(len("pdf-data")) {
		t.Errorf("software resume size = %d", status[TypeSoftware].Size)
	}
	if status[TypeDataScience].Exists {
		t.Error("datascience resume should not exist")
	}
}

func TestResolve(t *testing.T) {
	c, dir := newTestChecker(t)

	tests := []struct {
		name       string
		sel        Selection
		wantType   string
		wantExists bool
	}{
		{"none", Selection{Type: TypeNone}, TypeNone, false},
		{"software", Selection{Type: TypeSoftware}, TypeSoftware, true},
		{"datascience missing", Selection{Type: TypeDataScience}, TypeDataScience, false},
		{"auto software", Selection{Type: TypeAuto, DetectedRole: RoleSoftware}, TypeSoftware, true},
		{"auto datascience", Selection{Type: TypeAuto, DetectedRole: RoleDataScience}, TypeDataScience, false},
		{"auto unknown role", Selection{Type: TypeAuto, DetectedRole: RoleUnknown}, TypeSoftware, true},
		{"empty falls back to default", Selection{}, TypeSoftware, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := c.Resolve(tt.sel)
			if info.Type != tt.wantType {
				t.Errorf("Resolve().Type = %q, want %q", info.Type, tt.wantType)
			}
			if info.Exists != tt.wantExists {
				t.Errorf("Resolve().Exists = %v, want %v", info.Exists, tt.wantExists)
			}
		})
	}

	custom := filepath.Join(dir, "custom.pdf")
	if err := os.WriteFile(custom, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	info := c.Resolve(Selection{Type: TypeCustom, CustomPath: custom})
	if !info.Exists || info.FileName != "custom.pdf" {
		t.Errorf("Resolve(custom) = %+v", info)
	}
}

func TestDetectRole(t *testing.T) {
	tests := []struct {
		jobTitle, draft, want string
	}{
		{"Software Engineer", "", RoleSoftware},
		{"", "we work with pytorch models", RoleDataScience},
		{"BI Analyst", "", RoleDataAnalyst},
		{"Chef", "cooking pasta", RoleUnknown},
		{"Backend Developer", "", RoleSoftware},
	}

	for _, tt := range tests {
		if got := DetectRole(tt.jobTitle, tt.draft); got != tt.want {
			t.Errorf("DetectRole(%q, %q) = %q, want %q", tt.jobTitle, tt.draft, got, tt.want)
		}
	}
}
