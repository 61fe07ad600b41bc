package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fedmesh/fedmesh/federation"
	"github.com/fedmesh/fedmesh/pkg/api"
	"github.com/fedmesh/fedmesh/pkg/auth"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func MakeHandler(svc federation.Service, fedNode *federation.Servicer, events *federation.Emitter, authm *auth.Manager, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Group(func(r chi.Router) {
		r.Use(Authenticate(authm))

		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
				connectNodeEndpoint(svc),
				decodeConnectNodeReq,
				api.EncodeResponse,
				opts...,
			), "connect-node").ServeHTTP)
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				listNodesEndpoint(svc),
				decodeListEntityReq,
				api.EncodeResponse,
				opts...,
			), "list-nodes").ServeHTTP)
			r.Route("/{nodeID}", func(r chi.Router) {
				r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
					getNodeEndpoint(svc),
					decodeEntityReq("nodeID"),
					api.EncodeResponse,
					opts...,
				), "get-node").ServeHTTP)
				r.Delete("/", otelhttp.NewHandler(kithttp.NewServer(
					disconnectNodeEndpoint(svc),
					decodeEntityReq("nodeID"),
					api.EncodeResponse,
					opts...,
				), "disconnect-node").ServeHTTP)
			})
		})

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
				sendMessageEndpoint(svc),
				decodeMessageReq,
				api.EncodeResponse,
				opts...,
			), "send-message").ServeHTTP)
			r.Post("/broadcast", otelhttp.NewHandler(kithttp.NewServer(
				broadcastMessageEndpoint(svc),
				decodeMessageReq,
				api.EncodeResponse,
				opts...,
			), "broadcast-message").ServeHTTP)
			// Peer deliveries land here; they are ingested, not
			// routed onward.
			r.Post("/inbound", otelhttp.NewHandler(kithttp.NewServer(
				inboundMessageEndpoint(fedNode),
				decodeMessageReq,
				api.EncodeResponse,
				opts...,
			), "inbound-message").ServeHTTP)
			r.Get("/stream", StreamMessages(fedNode, logger))
		})

		r.Get("/federation/metrics", otelhttp.NewHandler(kithttp.NewServer(
			metricsEndpoint(svc),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "federation-metrics").ServeHTTP)

		r.Get("/events", StreamEvents(events, logger))
	})

	mux.Get("/health", supermq.Health("federation", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeConnectNodeReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req connectNodeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeMessageReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req messageReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}
	if req.SourceNodeID == "" {
		if nodeID, ok := r.Context().Value(NodeIDKey).(string); ok {
			req.SourceNodeID = nodeID
		}
	}

	return req, nil
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}

func decodeEmptyReq(_ context.Context, _ *http.Request) (any, error) {
	return nil, nil
}
