package oci

import "testing"

func TestParseReference(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantRepo string
		wantTag  string
	}{
		{name: "repo and tag", input: "myrepo:v1", wantRepo: "myrepo", wantTag: "v1"},
		{name: "tag defaults to latest", input: "myrepo", wantRepo: "myrepo", wantTag: "latest"},
		{name: "nested repo", input: "team/app:1.2", wantRepo: "team/app", wantTag: "1.2"},
		{name: "nested repo without tag", input: "team/app", wantRepo: "team/app", wantTag: "latest"},
		{name: "whitespace trimmed", input: "  ubuntu:24.04\n", wantRepo: "ubuntu", wantTag: "24.04"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := ParseReference(tt.input)
			if ref.Repository != tt.wantRepo {
				t.Errorf("repository = %q, want %q", ref.Repository, tt.wantRepo)
			}
			if ref.Tag != tt.wantTag {
				t.Errorf("tag = %q, want %q", ref.Tag, tt.wantTag)
			}
		})
	}
}

func TestReference_String(t *testing.T) {
	ref := Reference{Repository: "team/app", Tag: "v2"}
	if got := ref.String(); got != "team/app:v2" {
		t.Errorf("String() = %q, want %q", got, "team/app:v2")
	}
}

func TestReference_Flatten(t *testing.T) {
	ref := ParseReference("team/nested/app:v1").Flatten()
	if ref.Repository != "team-nested-app" {
		t.Errorf("repository = %q, want %q", ref.Repository, "team-nested-app")
	}
	if ref.Tag != "v1" {
		t.Errorf("tag = %q, want %q", ref.Tag, "v1")
	}
}

func TestReference_WithHubNamespace(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ubuntu", "library/ubuntu"},
		{"library/ubuntu", "library/ubuntu"},
		{"team/app", "team/app"},
	}
	for _, tt := range tests {
		got := ParseReference(tt.input).WithHubNamespace().Repository
		if got != tt.want {
			t.Errorf("WithHubNamespace(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
