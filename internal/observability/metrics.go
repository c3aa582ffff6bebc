package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SocialActions counts effective social graph changes by action.
	SocialActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mtum_social_actions_total",
		Help: "Total number of effective likes, unlikes, reblogs, follows and unfollows",
	}, []string{"action"})

	// PostsCreated counts authored posts by kind.
	PostsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mtum_posts_created_total",
		Help: "Total number of posts created by kind",
	}, []string{"kind"})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mtum_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})
)

// RecordSocialAction increments the social action counter.
func RecordSocialAction(action string) {
	SocialActions.WithLabelValues(action).Inc()
}
