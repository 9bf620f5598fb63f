package shell

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openhis/slotkit/internal/swr"
	"github.com/openhis/slotkit/internal/web/response"
	"github.com/openhis/slotkit/internal/web/router"
	sse "github.com/openhis/slotkit/internal/web/stream"
	"github.com/openhis/slotkit/internal/web/websocket"
)

const heartbeatEvery = 25 * time.Second

// resourceEvents streams the results of one key as server-sent events, for
// clients that cannot hold a websocket. Each result is a "resource" event
// carrying a ResourceMessage.
func (s *Shell) resourceEvents(w http.ResponseWriter, r *http.Request) {
	key, err := canonicalKey(router.QueryParam(r, "key", ""))
	if err != nil {
		s.fail(w, r, response.BadRequest(err.Error()))
		return
	}

	events, err := sse.NewSSE(w)
	if err != nil {
		s.cfg.Logger.Warn("event stream unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		return
	}

	// Only the newest undelivered result is kept.
	updates := make(chan swr.Result, 1)
	sub := s.cfg.Store.Subscribe(key, s.stream.fetcher(key), func(res swr.Result) {
		for {
			select {
			case updates <- res:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer sub.Cancel()

	if res := sub.Result(); !res.IsLoading {
		if err := events.JSON(websocket.TypeResource, toMessage(res)); err != nil {
			return
		}
	}

	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case res := <-updates:
			if err := events.JSON(websocket.TypeResource, toMessage(res)); err != nil {
				s.cfg.Logger.Debug("event stream closed", zap.String("key", key), zap.Error(err))
				return
			}
		case <-heartbeat.C:
			if err := events.Comment("heartbeat"); err != nil {
				return
			}
		}
	}
}
