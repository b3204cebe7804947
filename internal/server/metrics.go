package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialfeed_posts_created_total",
		Help: "Количество созданных постов",
	})
	likesToggled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialfeed_likes_toggled_total",
		Help: "Количество переключений лайков",
	})
	commentsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialfeed_comments_added_total",
		Help: "Количество добавленных комментариев",
	})
	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "socialfeed_ws_clients",
		Help: "Число открытых websocket-подключений к ленте",
	})
)
