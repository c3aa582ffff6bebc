package service

import (
	"context"
	"errors"
	"log/slog"

	"mtum/internal/middleware"
	"mtum/internal/notifications"
	"mtum/internal/observability"
	"mtum/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Publisher delivers social events to the affected user.
type Publisher interface {
	PublishUser(ctx context.Context, recipientID uint, ev notifications.Event) error
}

// SocialService implements likes, reblogs and follows. Every operation is idempotent
// and acting on your own post or blog is a no-op.
type SocialService struct {
	postRepo   repository.PostRepository
	userRepo   repository.UserRepository
	likeRepo   repository.LikeRepository
	followRepo repository.FollowRepository
	publisher  Publisher
}

// NewSocialService returns a SocialService. publisher may be nil.
func NewSocialService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	likeRepo repository.LikeRepository,
	followRepo repository.FollowRepository,
	publisher Publisher,
) *SocialService {
	return &SocialService{
		postRepo:   postRepo,
		userRepo:   userRepo,
		likeRepo:   likeRepo,
		followRepo: followRepo,
		publisher:  publisher,
	}
}

// Like records the actor's like on a post written by someone else.
func (s *SocialService) Like(ctx context.Context, actorID, postID uint) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "SocialService", "Like", postAttrs(actorID, postID)...)
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.postRepo.GetByID(ctx, postID, 0)
	if err != nil {
		return err
	}
	if post.UserID == actorID {
		return nil
	}
	added, err := s.likeRepo.Create(ctx, actorID, postID)
	if err != nil || !added {
		return err
	}
	observability.RecordSocialAction("like")
	s.notify(ctx, post.UserID, notifications.Event{Type: notifications.EventLike, ActorID: actorID, PostID: postID})
	return nil
}

// Unlike removes the actor's like, if any.
func (s *SocialService) Unlike(ctx context.Context, actorID, postID uint) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "SocialService", "Unlike", postAttrs(actorID, postID)...)
	defer func() { observability.EndSpan(span, err) }()

	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return err
	}
	removed, err := s.likeRepo.Delete(ctx, actorID, postID)
	if err != nil {
		return err
	}
	if removed {
		observability.RecordSocialAction("unlike")
	}
	return nil
}

// Reblog copies a post written by someone else onto the actor's blog, at most once.
func (s *SocialService) Reblog(ctx context.Context, actorID, postID uint) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "SocialService", "Reblog", postAttrs(actorID, postID)...)
	defer func() { observability.EndSpan(span, err) }()

	source, err := s.postRepo.GetByID(ctx, postID, 0)
	if err != nil {
		return err
	}
	if source.UserID == actorID {
		return nil
	}
	existing, err := s.postRepo.FindReblog(ctx, actorID, postID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	reblog, err := s.postRepo.CreateReblog(ctx, source, actorID)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return err
	}
	observability.RecordSocialAction("reblog")
	s.notify(ctx, source.UserID, notifications.Event{Type: notifications.EventReblog, ActorID: actorID, PostID: reblog.ID})
	return nil
}

// Follow makes the actor follow the blog identified by targetSlug.
func (s *SocialService) Follow(ctx context.Context, actorID uint, targetSlug string) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "SocialService", "Follow",
		attribute.Int64("user.id", int64(actorID)), attribute.String("blog.slug", targetSlug))
	defer func() { observability.EndSpan(span, err) }()

	target, err := s.userRepo.GetBySlug(ctx, targetSlug)
	if err != nil {
		return err
	}
	if target.ID == actorID {
		return nil
	}
	added, err := s.followRepo.Create(ctx, actorID, target.ID)
	if err != nil || !added {
		return err
	}
	observability.RecordSocialAction("follow")
	s.notify(ctx, target.ID, notifications.Event{Type: notifications.EventFollow, ActorID: actorID})
	return nil
}

// Unfollow removes the follow edge, if any.
func (s *SocialService) Unfollow(ctx context.Context, actorID uint, targetSlug string) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "SocialService", "Unfollow",
		attribute.Int64("user.id", int64(actorID)), attribute.String("blog.slug", targetSlug))
	defer func() { observability.EndSpan(span, err) }()

	target, err := s.userRepo.GetBySlug(ctx, targetSlug)
	if err != nil {
		return err
	}
	removed, err := s.followRepo.Delete(ctx, actorID, target.ID)
	if err != nil {
		return err
	}
	if removed {
		observability.RecordSocialAction("unfollow")
	}
	return nil
}

// notify is best effort: failures are logged and never fail the action.
func (s *SocialService) notify(ctx context.Context, recipientID uint, ev notifications.Event) {
	if s.publisher == nil {
		return
	}
	if actor, err := s.userRepo.GetByID(ctx, ev.ActorID); err == nil {
		ev.ActorName = actor.Username
	}
	if err := s.publisher.PublishUser(ctx, recipientID, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish notification",
			slog.String("type", string(ev.Type)),
			slog.Uint64("recipient_id", uint64(recipientID)),
			slog.String("error", err.Error()))
	}
}

func postAttrs(actorID, postID uint) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("user.id", int64(actorID)),
		attribute.Int64("post.id", int64(postID)),
	}
}
