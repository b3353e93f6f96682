// Package ws streams live property events to dashboards over WebSocket.
package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/scope"
	"github.com/gosuda/leasekeep/internal/server/middleware"
	redisstore "github.com/gosuda/leasekeep/internal/store/redis"
)

// Subscriber delivers raw messages published on a channel until cleanup is
// called. *redisstore.PubSub satisfies this interface.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

type ScopeResolver interface {
	Resolve(ctx context.Context, p domain.Principal) (*scope.Scope, error)
}

// Hub manages WebSocket connections backed by Redis pub/sub.
type Hub struct {
	pubsub   Subscriber
	resolver ScopeResolver
}

func NewHub(pubsub Subscriber, resolver ScopeResolver) *Hub {
	return &Hub{pubsub: pubsub, resolver: resolver}
}

// ServeProperty streams the transition events of one property.
// Subscribes to Redis channel "property:<propertyID>". The caller must be
// allowed to watch the property.
func (h *Hub) ServeProperty(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "missing principal", http.StatusUnauthorized)
		return
	}

	propertyID, err := uuid.Parse(chi.URLParam(r, "propertyID"))
	if err != nil {
		http.Error(w, "invalid property id", http.StatusBadRequest)
		return
	}

	sc, err := h.resolver.Resolve(r.Context(), p)
	if err != nil {
		log.Error().Err(err).Msg("websocket resolve scope")
		http.Error(w, "scope resolution failed", http.StatusInternalServerError)
		return
	}
	if err := sc.Check(scope.CapWatchProperty, propertyID, uuid.Nil); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead handles control frames and cancels ctx
	// once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	messages, cleanup, err := h.pubsub.Subscribe(ctx, redisstore.PropertyChannel(propertyID))
	if err != nil {
		log.Error().Err(err).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	log.Debug().Str("property_id", propertyID.String()).Str("user_id", p.UserID.String()).Msg("websocket watching property")

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				if !errors.Is(writeErr, context.Canceled) {
					log.Debug().Err(writeErr).Msg("websocket write")
				}
				return
			}
		}
	}
}
