package validation

import (
	"strings"
	"testing"

	"mtum/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "correct horse", false},
		{"Exactly Min Length", "abcdefgh", false},
		{"Exactly Max Length", strings.Repeat("a", 128), false},
		{"Too Short", "short", true},
		{"Too Long", strings.Repeat("a", 129), true},
		{"Unicode Counted By Rune", "ÅÅÅÅÅÅÅÅ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		username string
		wantErr  bool
	}{
		{"alice", false},
		{"al", true},
		{"Alice_99", false},
		{"a-b", false},
		{"_alice", true},
		{"alice-", true},
		{"ali ce", true},
		{"alicé", true},
		{strings.Repeat("a", 30), false},
		{strings.Repeat("a", 31), true},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsHTTPURL(t *testing.T) {
	t.Parallel()
	assert.True(t, IsHTTPURL("https://example.com/cat.png"))
	assert.True(t, IsHTTPURL("http://example.com"))
	assert.False(t, IsHTTPURL("ftp://example.com/file"))
	assert.False(t, IsHTTPURL("javascript:alert(1)"))
	assert.False(t, IsHTTPURL("/relative/path"))
	assert.False(t, IsHTTPURL(""))
}

type signupForm struct {
	Username string `form:"username" validate:"required,username"`
	Email    string `form:"email" validate:"required,email,max=254"`
	Password string `form:"password" validate:"required,password"`
	Media    string `form:"media_url" validate:"omitempty,httpurl"`
}

func TestStruct(t *testing.T) {
	t.Parallel()

	require.NoError(t, Struct(&signupForm{Username: "alice", Email: "a@example.com", Password: "long enough"}))

	err := Struct(&signupForm{Username: "_x", Email: "nope", Media: "ftp://x"})
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	fields := Fields(err)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
	assert.Equal(t, "password is required", fields["password"])
	assert.Contains(t, fields["media_url"], "http or https")
}
