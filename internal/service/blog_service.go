package service

import (
	"context"
	"math/rand/v2"
	"net/url"
	"slices"
	"strings"

	"mtum/internal/models"
	"mtum/internal/observability"
	"mtum/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Page size bounds for listings.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest selects a window of a listing. Number is 1-based.
type PageRequest struct {
	Number int
	Size   int
}

func (p PageRequest) window() (limit, offset int) {
	limit = p.Size
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	n := p.Number
	if n < 1 {
		n = 1
	}
	return limit, (n - 1) * limit
}

// DashboardFilter selects which posts a dashboard shows.
type DashboardFilter string

const (
	// DashboardAll shows the actor's posts and those of followed blogs.
	DashboardAll DashboardFilter = "dashboard"
	// DashboardMine shows the actor's own posts.
	DashboardMine DashboardFilter = "mine"
	// DashboardLikes shows posts the actor liked, most recently liked first.
	DashboardLikes DashboardFilter = "likes"
	// DashboardFollowing shows posts of followed blogs only.
	DashboardFollowing DashboardFilter = "following"
)

// BlogPage is one page of a blog listing.
type BlogPage struct {
	Owner *models.User
	// Tag is set for tag-filtered listings.
	Tag *models.Tag
	// Keyword is set for search results.
	Keyword string
	// Following reports whether the viewer follows Owner.
	Following bool
	Posts     models.Page[models.Post]
}

// PostDetail is a post together with its notes.
type PostDetail struct {
	Owner     *models.User
	Post      *models.Post
	Notes     []models.Note
	Following bool
}

// BlogService serves blog listings, search, post details and dashboards.
type BlogService struct {
	userRepo   repository.UserRepository
	postRepo   repository.PostRepository
	tagRepo    repository.TagRepository
	likeRepo   repository.LikeRepository
	followRepo repository.FollowRepository
	intn       func(n int) int
}

// NewBlogService returns a BlogService.
func NewBlogService(
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	tagRepo repository.TagRepository,
	likeRepo repository.LikeRepository,
	followRepo repository.FollowRepository,
) *BlogService {
	return &BlogService{
		userRepo:   userRepo,
		postRepo:   postRepo,
		tagRepo:    tagRepo,
		likeRepo:   likeRepo,
		followRepo: followRepo,
		intn:       rand.IntN,
	}
}

// ListUserPosts lists a blog's posts newest first, optionally only those tagged tagSlug.
func (s *BlogService) ListUserPosts(ctx context.Context, viewerID uint, userSlug, tagSlug string, page PageRequest) (bp *BlogPage, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "BlogService", "ListUserPosts",
		attribute.String("blog.slug", userSlug), attribute.String("tag.slug", tagSlug))
	defer func() { observability.EndSpan(span, err) }()

	bp, err = s.blogPage(ctx, viewerID, userSlug)
	if err != nil {
		return nil, err
	}
	q := repository.PostQuery{AuthorID: bp.Owner.ID, ViewerID: viewerID}
	if tagSlug != "" {
		if bp.Tag, err = s.tagRepo.GetBySlug(ctx, tagSlug); err != nil {
			return nil, err
		}
		q.TagSlug = tagSlug
	}
	if bp.Posts, err = s.list(ctx, q, page); err != nil {
		return nil, err
	}
	return bp, nil
}

// SearchUserPosts lists a blog's posts carrying a tag named keyword, ignoring case.
func (s *BlogService) SearchUserPosts(ctx context.Context, viewerID uint, userSlug, keyword string, page PageRequest) (bp *BlogPage, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "BlogService", "SearchUserPosts",
		attribute.String("blog.slug", userSlug))
	defer func() { observability.EndSpan(span, err) }()

	keyword, err = searchKeyword(keyword)
	if err != nil {
		return nil, err
	}
	bp, err = s.blogPage(ctx, viewerID, userSlug)
	if err != nil {
		return nil, err
	}
	bp.Keyword = keyword
	bp.Posts, err = s.list(ctx, repository.PostQuery{AuthorID: bp.Owner.ID, TagName: keyword, ViewerID: viewerID}, page)
	if err != nil {
		return nil, err
	}
	return bp, nil
}

// PostDetail returns a post of the blog with its likes and reblogs, newest first.
// A non-empty postSlug must match the post's slug.
func (s *BlogService) PostDetail(ctx context.Context, viewerID uint, userSlug string, postID uint, postSlug string) (d *PostDetail, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "BlogService", "PostDetail",
		attribute.String("blog.slug", userSlug), attribute.Int64("post.id", int64(postID)))
	defer func() { observability.EndSpan(span, err) }()

	owner, err := s.userRepo.GetBySlug(ctx, userSlug)
	if err != nil {
		return nil, err
	}
	post, err := s.postRepo.GetByID(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	if post.UserID != owner.ID || (postSlug != "" && postSlug != post.Slug) {
		return nil, models.NewNotFoundError("Post", postID)
	}

	likes, err := s.likeRepo.ListForPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	reblogs, err := s.postRepo.ListReblogsOf(ctx, postID)
	if err != nil {
		return nil, err
	}

	notes := make([]models.Note, 0, len(likes)+len(reblogs))
	for _, l := range likes {
		notes = append(notes, models.Note{Kind: models.NoteKindLike, User: l.User, PostID: l.PostID, CreatedAt: l.CreatedAt})
	}
	for _, r := range reblogs {
		notes = append(notes, models.Note{Kind: models.NoteKindReblog, User: r.User, PostID: r.ID, CreatedAt: r.CreatedAt})
	}
	slices.SortStableFunc(notes, func(a, b models.Note) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	following, err := s.isFollowing(ctx, viewerID, owner.ID)
	if err != nil {
		return nil, err
	}
	return &PostDetail{Owner: owner, Post: post, Notes: notes, Following: following}, nil
}

// RandomPost picks one of the blog's posts uniformly at random.
func (s *BlogService) RandomPost(ctx context.Context, userSlug string) (post *models.Post, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "BlogService", "RandomPost",
		attribute.String("blog.slug", userSlug))
	defer func() { observability.EndSpan(span, err) }()

	owner, err := s.userRepo.GetBySlug(ctx, userSlug)
	if err != nil {
		return nil, err
	}
	count, err := s.postRepo.CountByAuthor(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, models.NewNotFoundError("Post", "random of "+userSlug)
	}
	post, err = s.postRepo.NthByAuthor(ctx, owner.ID, s.intn(int(count)))
	if err != nil {
		return nil, err
	}
	post.User = *owner
	return post, nil
}

// Dashboard lists posts for the actor's dashboards.
func (s *BlogService) Dashboard(ctx context.Context, actorID uint, filter DashboardFilter, page PageRequest) (p models.Page[models.Post], err error) {
	ctx, span := observability.StartServiceSpan(ctx, "BlogService", "Dashboard",
		attribute.Int64("user.id", int64(actorID)), attribute.String("dashboard.filter", string(filter)))
	defer func() { observability.EndSpan(span, err) }()

	q := repository.PostQuery{ViewerID: actorID}
	switch filter {
	case DashboardAll:
		q.FollowedBy, q.IncludeSelf = actorID, true
	case DashboardMine:
		q.AuthorID = actorID
	case DashboardLikes:
		q.LikedBy = actorID
	case DashboardFollowing:
		q.FollowedBy = actorID
	default:
		return p, models.NewNotFoundError("Dashboard", filter)
	}
	return s.list(ctx, q, page)
}

// SearchAllPosts lists posts by anyone carrying a tag named keyword, ignoring case.
func (s *BlogService) SearchAllPosts(ctx context.Context, viewerID uint, keyword string, page PageRequest) (p models.Page[models.Post], err error) {
	ctx, span := observability.StartServiceSpan(ctx, "BlogService", "SearchAllPosts")
	defer func() { observability.EndSpan(span, err) }()

	keyword, err = searchKeyword(keyword)
	if err != nil {
		return p, err
	}
	return s.list(ctx, repository.PostQuery{TagName: keyword, ViewerID: viewerID}, page)
}

// Explore lists the latest posts from everyone.
func (s *BlogService) Explore(ctx context.Context, viewerID uint, page PageRequest) (p models.Page[models.Post], err error) {
	ctx, span := observability.StartServiceSpan(ctx, "BlogService", "Explore")
	defer func() { observability.EndSpan(span, err) }()

	return s.list(ctx, repository.PostQuery{ViewerID: viewerID}, page)
}

func (s *BlogService) blogPage(ctx context.Context, viewerID uint, userSlug string) (*BlogPage, error) {
	owner, err := s.userRepo.GetBySlug(ctx, userSlug)
	if err != nil {
		return nil, err
	}
	following, err := s.isFollowing(ctx, viewerID, owner.ID)
	if err != nil {
		return nil, err
	}
	return &BlogPage{Owner: owner, Following: following}, nil
}

func (s *BlogService) isFollowing(ctx context.Context, viewerID, ownerID uint) (bool, error) {
	if viewerID == 0 || viewerID == ownerID {
		return false, nil
	}
	return s.followRepo.Exists(ctx, viewerID, ownerID)
}

func (s *BlogService) list(ctx context.Context, q repository.PostQuery, page PageRequest) (models.Page[models.Post], error) {
	q.Limit, q.Offset = page.window()
	posts, err := s.postRepo.List(ctx, q)
	if err != nil {
		return models.Page[models.Post]{}, err
	}
	return models.NewPage(posts, q.Limit, q.Offset), nil
}

// SearchKeyword unescapes and trims a keyword taken from a URL path. A malformed escape
// leaves the raw text in place.
func SearchKeyword(raw string) string {
	kw := raw
	if unescaped, err := url.PathUnescape(raw); err == nil {
		kw = unescaped
	}
	return strings.TrimSpace(kw)
}

func searchKeyword(raw string) (string, error) {
	kw := SearchKeyword(raw)
	if kw == "" {
		return "", models.NewValidationError("Search keyword is required")
	}
	return kw, nil
}
