package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePostKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    PostKind
		wantErr bool
	}{
		{"text", PostKindText, false},
		{"Photo", PostKindPhoto, false},
		{" video ", PostKindVideo, false},
		{"audio", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePostKind(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, CodeValidation, ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostKindHasMedia(t *testing.T) {
	t.Parallel()
	assert.False(t, PostKindText.HasMedia())
	assert.True(t, PostKindPhoto.HasMedia())
	assert.True(t, PostKindVideo.HasMedia())
}

func TestNewPage(t *testing.T) {
	t.Parallel()

	p := NewPage([]int{1, 2, 3}, 2, 4)
	assert.Equal(t, []int{1, 2}, p.Items)
	assert.True(t, p.HasMore)
	assert.Equal(t, 3, p.Number())

	p = NewPage([]int{1}, 2, 0)
	assert.Equal(t, []int{1}, p.Items)
	assert.False(t, p.HasMore)
	assert.Equal(t, 1, p.Number())
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("lookup: %w", NewNotFoundError("Post", 7))
	assert.Equal(t, CodeNotFound, ErrorCode(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, CodeInternal, ErrorCode(errors.New("boom")))
	assert.False(t, IsNotFound(nil))

	internal := NewInternalError(errors.New("db down"))
	assert.ErrorContains(t, internal, "db down")
	assert.Equal(t, "Post 7 not found", NewNotFoundError("Post", 7).Error())
}

func TestUserBlogSlug(t *testing.T) {
	t.Parallel()
	var nilUser *User
	assert.Equal(t, "", nilUser.BlogSlug())
	assert.Equal(t, "", (&User{}).BlogSlug())
	assert.Equal(t, "alice", (&User{Profile: &UserProfile{Slug: "alice"}}).BlogSlug())
}
