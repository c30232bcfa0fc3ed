package parser

import (
	"testing"
)

func TestParse_TitleAndVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantTitle   string
		wantVersion string
		wantYear    int
		wantGroup   string
	}{
		{"gog with version", "Baldurs.Gate.3.v4.1.1.GOG", "Baldurs Gate 3", "4.1.1", 0, ""},
		{"scene update", "Starfield.Update.v1.7.23-TENOKE", "Starfield", "1.7.23", 0, "TENOKE"},
		{"year and proper", "Some.Game.2024.PROPER-CODEX", "Some Game", "", 2024, "CODEX"},
		{"hyphenated title", "Half-Life.2.GOG", "Half-Life 2", "", 0, ""},
		{"repack with multi", "Elden.Ring.MULTi12-FitGirl.Repack", "Elden Ring", "", 0, ""},
		{"spaces", "Hades II v0.9 Linux", "Hades II", "0.9", 0, ""},
		{"build number", "Factorio.Build.12345-RUNE", "Factorio", "build.12345", 0, "RUNE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got.Title != tt.wantTitle {
				t.Errorf("Parse(%q).Title = %q, want %q", tt.input, got.Title, tt.wantTitle)
			}
			if got.Version != tt.wantVersion {
				t.Errorf("Parse(%q).Version = %q, want %q", tt.input, got.Version, tt.wantVersion)
			}
			if got.Year != tt.wantYear {
				t.Errorf("Parse(%q).Year = %d, want %d", tt.input, got.Year, tt.wantYear)
			}
			if got.Group != tt.wantGroup {
				t.Errorf("Parse(%q).Group = %q, want %q", tt.input, got.Group, tt.wantGroup)
			}
		})
	}
}

func TestParse_Source(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Baldurs.Gate.3.v4.1.1.GOG", "gog"},
		{"Portal.2.SteamRip", "steam"},
		{"Elden.Ring.MULTi12-FitGirl.Repack", "repack"},
		{"Some.Game.2024-CODEX", "scene"},
		{"Old.Game.ISO", "iso"},
		{"Indie.Game.itch.io", "web"},
		{"Unknown.Game", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Parse(tt.input).Source; got != tt.want {
				t.Errorf("Parse(%q).Source = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_Modifier(t *testing.T) {
	tests := []struct {
		input        string
		wantModifier string
		wantRevision int
		wantReal     int
	}{
		{"Some.Game.PROPER-CODEX", "proper", 2, 0},
		{"Some.Game.REPACK-SKIDROW", "repack", 2, 0},
		{"Some.Game.REAL.PROPER-CODEX", "proper", 2, 1},
		{"Some.Game.Update.v1.2-RUNE", "update", 0, 0},
		{"Some.Game.Crackfix-RUNE", "crack", 0, 0},
		{"Elden.Ring.MULTi12-FitGirl.Repack", "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Parse(tt.input)
			if got.Modifier != tt.wantModifier {
				t.Errorf("Modifier = %q, want %q", got.Modifier, tt.wantModifier)
			}
			if got.Revision != tt.wantRevision {
				t.Errorf("Revision = %d, want %d", got.Revision, tt.wantRevision)
			}
			if got.Real != tt.wantReal {
				t.Errorf("Real = %d, want %d", got.Real, tt.wantReal)
			}
		})
	}
}

func TestParse_LanguagesAndResolution(t *testing.T) {
	got := Parse("Some.Game.GERMAN.2160p-RUNE")
	if len(got.Languages) != 1 || got.Languages[0] != "de" {
		t.Errorf("Languages = %v, want [de]", got.Languages)
	}
	if got.Resolution != 2160 {
		t.Errorf("Resolution = %d, want 2160", got.Resolution)
	}
	if got.Title != "Some Game" {
		t.Errorf("Title = %q, want %q", got.Title, "Some Game")
	}

	multi := Parse("Elden.Ring.MULTi12-FitGirl.Repack")
	if len(multi.Languages) != 1 || multi.Languages[0] != "mul" {
		t.Errorf("Languages = %v, want [mul]", multi.Languages)
	}

	none := Parse("Plain.Game-RUNE")
	if len(none.Languages) != 0 {
		t.Errorf("Languages = %v, want none", none.Languages)
	}
}

func TestParse_Platform(t *testing.T) {
	if got := Parse("Hades II v0.9 Linux").Platform; got != "linux" {
		t.Errorf("Platform = %q, want linux", got)
	}
	if got := Parse("Some.Game.Win64-RUNE").Platform; got != "windows" {
		t.Errorf("Platform = %q, want windows", got)
	}
}

func TestParse_Empty(t *testing.T) {
	got := Parse("   ")
	if got.Title != "" || got.Source != "" {
		t.Errorf("Parse(empty) = %+v, want zero value", got)
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Some.Game.Name", "Some Game Name"},
		{"  Some_Game  ", "Some Game"},
		{"Game - ", "Game"},
	}
	for _, tt := range tests {
		if got := CleanTitle(tt.input); got != tt.want {
			t.Errorf("CleanTitle(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
