package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name       string
		pattern    string
		path       string
		wantMatch  bool
		wantParams map[string]string
	}{
		{
			name:      "literal match",
			pattern:   "/users/list",
			path:      "/users/list",
			wantMatch: true,
			wantParams: map[string]string{},
		},
		{
			name:      "single param binds segment",
			pattern:   "/users/{id}",
			path:      "/users/42",
			wantMatch: true,
			wantParams: map[string]string{"id": "42"},
		},
		{
			name:      "multiple params bind independently",
			pattern:   "/orgs/{org}/repos/{repo}",
			path:      "/orgs/acme/repos/widget",
			wantMatch: true,
			wantParams: map[string]string{"org": "acme", "repo": "widget"},
		},
		{
			name:      "segment count mismatch fails",
			pattern:   "/users/{id}",
			path:      "/users/42/extra",
			wantMatch: false,
		},
		{
			name:      "literal segment mismatch fails",
			pattern:   "/users/{id}/profile",
			path:      "/users/42/settings",
			wantMatch: false,
		},
		{
			name:      "empty bound segment fails",
			pattern:   "/users/{id}",
			path:      "/users/",
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, ok := MatchPattern(tt.pattern, tt.path)
			assert.Equal(t, tt.wantMatch, ok)
			if tt.wantMatch {
				assert.Equal(t, tt.wantParams, params)
			}
		})
	}
}

func TestPatternsOverlap(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		overlap bool
	}{
		{"identical literals overlap", "/users/list", "/users/list", true},
		{"different segment counts do not overlap", "/users/{id}", "/users/{id}/profile", false},
		{"param vs literal same shape overlaps", "/users/{id}", "/users/active", true},
		{"two different params same shape overlap", "/users/{id}", "/users/{name}", true},
		{"different literals do not overlap", "/users/active", "/users/inactive", false},
		{"nested literal difference does not overlap", "/orgs/{org}/repos/widget", "/orgs/{org}/repos/gadget", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overlap, patternsOverlap(tt.a, tt.b))
		})
	}
}

func TestSpecificity(t *testing.T) {
	assert.Equal(t, 2, Specificity("/users/list"))
	assert.Equal(t, 1, Specificity("/users/{id}"))
	assert.Equal(t, 0, Specificity("/{a}/{b}"))
}
