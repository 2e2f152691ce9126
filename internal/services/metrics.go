package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// authAttempts counts register/login outcomes.
	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meme_auth_attempts_total",
			Help: "Register and login attempts by outcome.",
		},
		[]string{"op", "outcome"},
	)

	// likeToggles counts toggle results ("liked" or "unliked").
	likeToggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meme_like_toggles_total",
			Help: "Like toggles by resulting action.",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(authAttempts, likeToggles)
}
