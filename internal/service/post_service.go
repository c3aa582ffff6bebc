package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"mtum/internal/models"
	"mtum/internal/observability"
	"mtum/internal/repository"
	"mtum/internal/validation"

	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/attribute"
)

const (
	maxTitleLen   = 300
	maxContentLen = 50000
	maxTagLen     = 100
)

// PostService creates and deletes posts.
type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
}

// CreatePostInput is the post form. Kind comes from the route, not the form.
type CreatePostInput struct {
	AuthorID uint            `form:"-"`
	Kind     models.PostKind `form:"-"`
	Title    string          `form:"title" validate:"max=300"`
	Content  string          `form:"content" validate:"max=50000"`
	MediaURL string          `form:"media_url"`
	Tags     string          `form:"tags"`
}

// NewPostService returns a PostService.
func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository) *PostService {
	return &PostService{postRepo: postRepo, userRepo: userRepo}
}

// ParseTags splits a comma separated tag list, trimming tokens and dropping empty and repeated ones.
func ParseTags(csv string) []string {
	var tags []string
	seen := make(map[string]struct{})
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tags = append(tags, tok)
	}
	return tags
}

// CreatePost stores a new post and returns it with the URL of its detail page.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (post *models.Post, target string, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "CreatePost",
		attribute.Int64("user.id", int64(in.AuthorID)), attribute.String("post.kind", string(in.Kind)))
	defer func() { observability.EndSpan(span, err) }()

	kind, err := models.ParsePostKind(string(in.Kind))
	if err != nil {
		return nil, "", err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.MediaURL = strings.TrimSpace(in.MediaURL)

	fields := validation.Fields(validation.Struct(in))
	if fields == nil {
		fields = validation.FieldErrors{}
	}
	if kind == models.PostKindText {
		in.MediaURL = ""
		if strings.TrimSpace(in.Content) == "" {
			fields["content"] = "content is required"
		}
	} else if !validation.IsHTTPURL(in.MediaURL) {
		fields["media_url"] = "media_url must be an http or https URL"
	}

	tags := ParseTags(in.Tags)
	for _, t := range tags {
		if utf8.RuneCountInString(t) > maxTagLen {
			fields["tags"] = fmt.Sprintf("tags must be at most %d characters each", maxTagLen)
			break
		}
	}
	if len(fields) > 0 {
		return nil, "", validation.Failed(fields)
	}

	author, err := s.userRepo.GetByID(ctx, in.AuthorID)
	if err != nil {
		return nil, "", err
	}

	post = &models.Post{
		UserID:   author.ID,
		Kind:     kind,
		Title:    in.Title,
		Content:  in.Content,
		MediaURL: in.MediaURL,
		Slug:     PostSlug(in.Title),
	}
	if err := s.postRepo.Create(ctx, post, tags); err != nil {
		return nil, "", err
	}
	post.User = *author

	observability.PostsCreated.WithLabelValues(string(kind)).Inc()
	span.SetAttributes(attribute.Int64("post.id", int64(post.ID)))
	return post, PostURL(author.BlogSlug(), post), nil
}

// DeletePost removes a post written by the actor, together with its reblogs.
func (s *PostService) DeletePost(ctx context.Context, actorID, postID uint) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "DeletePost",
		attribute.Int64("user.id", int64(actorID)), attribute.Int64("post.id", int64(postID)))
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.postRepo.GetByID(ctx, postID, 0)
	if err != nil {
		return err
	}
	if post.UserID != actorID {
		return models.NewForbiddenError("You can only delete your own posts")
	}
	return s.postRepo.Delete(ctx, postID)
}

// PostSlug derives the URL slug of a post title. It may be empty.
func PostSlug(title string) string {
	s := slug.Make(title)
	if len(s) > maxTitleLen {
		s = strings.Trim(s[:maxTitleLen], "-")
	}
	return s
}

// PostURL returns the detail page path of post on the blog identified by blogSlug.
func PostURL(blogSlug string, post *models.Post) string {
	if post.Slug == "" {
		return fmt.Sprintf("/blog/%s/post/%d", blogSlug, post.ID)
	}
	return fmt.Sprintf("/blog/%s/post/%d/%s", blogSlug, post.ID, post.Slug)
}
