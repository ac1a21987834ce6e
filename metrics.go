package main

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	SuccessfulRequests *prometheus.CounterVec
	BadRequests        *prometheus.CounterVec
	Registrations      *prometheus.CounterVec
	PostsCreated       *prometheus.CounterVec
	StoriesCreated     *prometheus.CounterVec
	LikesCreated       *prometheus.CounterVec
	FollowRequests     *prometheus.CounterVec
	UnfollowRequests   *prometheus.CounterVec
}

func InitMetrics() *Metrics {
	m := &Metrics{
		SuccessfulRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_request",
				Help: "Total number of successful (2xx) HTTP requests",
			},
			[]string{"path"},
		),
		BadRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unsuccessful_request",
				Help: "Total number of unsuccessful (4xx) HTTP requests",
			},
			[]string{"path"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_registration",
				Help: "Total number of successfully registered users",
			},
			[]string{"path"},
		),
		PostsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_post",
				Help: "Total number of successfully created posts",
			},
			[]string{"path"},
		),
		StoriesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_story",
				Help: "Total number of successfully created stories",
			},
			[]string{"path"},
		),
		LikesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_like",
				Help: "Total number of successfully created likes",
			},
			[]string{"path"},
		),
		FollowRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_follows",
				Help: "Total number of successfully sent follow requests",
			},
			[]string{"path"},
		),
		UnfollowRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_unfollows",
				Help: "Total number of successfully sent unfollow requests",
			},
			[]string{"path"},
		),
	}

	prometheus.MustRegister(m.SuccessfulRequests)
	prometheus.MustRegister(m.BadRequests)
	prometheus.MustRegister(m.Registrations)
	prometheus.MustRegister(m.PostsCreated)
	prometheus.MustRegister(m.StoriesCreated)
	prometheus.MustRegister(m.LikesCreated)
	prometheus.MustRegister(m.FollowRequests)
	prometheus.MustRegister(m.UnfollowRequests)

	return m
}
