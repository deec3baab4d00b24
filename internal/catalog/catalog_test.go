//go:build !integration

package catalog

import (
	"strings"
	"testing"

	"hookstudio/internal/domain/model"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}
	if c.Len() == 0 {
		t.Fatal("expected a non-empty catalog")
	}
	all := c.All()
	if all[0].ID != "first_hook" {
		t.Errorf("expected catalog order to be preserved, first is %s", all[0].ID)
	}
	if _, ok := c.Get("first_template"); !ok {
		t.Error("expected first_template in default catalog")
	}

	// mutating the copy must not affect the catalog
	all[0].XP = 9999
	if d, _ := c.Get("first_hook"); d.XP == 9999 {
		t.Error("All() must return a copy")
	}
}

func TestNew_Validation(t *testing.T) {
	cases := []struct {
		name string
		defs []model.AchievementDefinition
		want string
	}{
		{"missing id", []model.AchievementDefinition{{Category: model.CategoryGeneration, Requirement: 1}}, "without id"},
		{"bad category", []model.AchievementDefinition{{ID: "x", Category: "social", Requirement: 1}}, "unknown category"},
		{"zero requirement", []model.AchievementDefinition{{ID: "x", Category: model.CategoryStreaks}}, "requirement"},
		{"duplicate", []model.AchievementDefinition{
			{ID: "x", Category: model.CategoryStreaks, Requirement: 1},
			{ID: "x", Category: model.CategoryStreaks, Requirement: 2},
		}, "duplicate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.defs)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("achievements: [")); err == nil {
		t.Error("expected parse error")
	}
}
