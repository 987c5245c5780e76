package cmd

import "testing"

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"", "b", 1},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"records", "recrods", 2},
		{"abc", "abc", 0},
	}
	for _, tt := range tests {
		got := levenshtein(tt.a, tt.b)
		if got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSuggestCommand(t *testing.T) {
	commands := []string{"records", "layouts", "layout-metadata", "scripts", "databases", "product-info", "profile", "token", "logout", "container", "globals", "api", "version"}
	tests := []struct {
		input string
		want  string
	}{
		{"recrods", "records"},
		{"RECORDS", "records"},
		{"layuots", "layouts"},
		{"scirpts", "scripts"},
		{"databses", "databases"},
		{"profil", "profile"},
		{"tokn", "token"},
		{"globls", "globals"},
		{"verison", "version"},
		{"zzzzzzz", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got := suggestCommand(tt.input, commands)
		if got != tt.want {
			t.Errorf("suggestCommand(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSuggestFlag(t *testing.T) {
	flags := []string{"--layout", "--limit", "--offset", "--sort", "--portal", "--field", "--query"}
	tests := []struct {
		input string
		want  string
	}{
		{"--layuot", "--layout"},
		{"--limt", "--limit"},
		{"--ofset", "--offset"},
		{"--srot", "--sort"},
		{"--portl", "--portal"},
		{"--zzzzzz", ""},
	}
	for _, tt := range tests {
		got := suggestFlag(tt.input, flags)
		if got != tt.want {
			t.Errorf("suggestFlag(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSuggestFlag_StripsDashes(t *testing.T) {
	got := suggestFlag("-layot", []string{"--layout", "-l"})
	if got != "--layout" {
		t.Errorf("suggestFlag(-layot) = %q, want --layout", got)
	}
}
