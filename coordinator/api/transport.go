package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fedmesh/fedmesh/coordinator"
	fedapi "github.com/fedmesh/fedmesh/federation/api"
	"github.com/fedmesh/fedmesh/participant"
	"github.com/fedmesh/fedmesh/pkg/api"
	"github.com/fedmesh/fedmesh/pkg/auth"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxUpdateSize = 1024 * 1024 * 100

func MakeHandler(svc coordinator.Service, participants *participant.Manager, authm *auth.Manager, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Group(func(r chi.Router) {
		r.Use(fedapi.Authenticate(authm))

		r.Route("/rounds", func(r chi.Router) {
			r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
				startRoundEndpoint(svc),
				decodeStartRoundReq,
				api.EncodeResponse,
				opts...,
			), "start-round").ServeHTTP)
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				listRoundsEndpoint(svc),
				decodeEmptyReq,
				api.EncodeResponse,
				opts...,
			), "list-rounds").ServeHTTP)
			r.Route("/{roundID}", func(r chi.Router) {
				r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
					roundStatusEndpoint(svc),
					decodeEntityReq("roundID"),
					api.EncodeResponse,
					opts...,
				), "round-status").ServeHTTP)
				r.Post("/gradients", otelhttp.NewHandler(kithttp.NewServer(
					submitGradientEndpoint(svc),
					decodeGradientReq,
					api.EncodeResponse,
					opts...,
				), "submit-gradient").ServeHTTP)
				r.Post("/models", otelhttp.NewHandler(kithttp.NewServer(
					submitModelEndpoint(svc),
					decodeModelReq,
					api.EncodeResponse,
					opts...,
				), "submit-model").ServeHTTP)
			})
		})

		// CBOR submission paths carry the round ID inside the payload,
		// matching the streaming transport framing.
		r.Post("/updates/gradients", otelhttp.NewHandler(kithttp.NewServer(
			submitGradientCBOREndpoint(svc),
			decodeCBORReq,
			api.EncodeResponse,
			opts...,
		), "submit-gradient-cbor").ServeHTTP)
		r.Post("/updates/models", otelhttp.NewHandler(kithttp.NewServer(
			submitModelCBOREndpoint(svc),
			decodeCBORReq,
			api.EncodeResponse,
			opts...,
		), "submit-model-cbor").ServeHTTP)

		r.Route("/models", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				globalModelEndpoint(svc),
				decodeLatestModelReq,
				api.EncodeResponse,
				opts...,
			), "get-latest-model").ServeHTTP)
			r.Get("/{version}", otelhttp.NewHandler(kithttp.NewServer(
				globalModelEndpoint(svc),
				decodeModelVersionReq,
				api.EncodeResponse,
				opts...,
			), "get-model").ServeHTTP)
		})

		r.Route("/participants", func(r chi.Router) {
			r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
				registerParticipantEndpoint(participants),
				decodeRegisterParticipantReq,
				api.EncodeResponse,
				opts...,
			), "register-participant").ServeHTTP)
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				listParticipantsEndpoint(participants),
				decodeListEntityReq,
				api.EncodeResponse,
				opts...,
			), "list-participants").ServeHTTP)
			r.Route("/{nodeID}", func(r chi.Router) {
				r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
					getParticipantEndpoint(participants),
					decodeEntityReq("nodeID"),
					api.EncodeResponse,
					opts...,
				), "get-participant").ServeHTTP)
				r.Delete("/", otelhttp.NewHandler(kithttp.NewServer(
					unregisterParticipantEndpoint(participants),
					decodeEntityReq("nodeID"),
					api.EncodeResponse,
					opts...,
				), "unregister-participant").ServeHTTP)
				r.Patch("/reputation", otelhttp.NewHandler(kithttp.NewServer(
					updateReputationEndpoint(participants),
					decodeReputationReq,
					api.EncodeResponse,
					opts...,
				), "update-reputation").ServeHTTP)
				r.Post("/suspend", otelhttp.NewHandler(kithttp.NewServer(
					suspendParticipantEndpoint(participants),
					decodeStatusActionReq,
					api.EncodeResponse,
					opts...,
				), "suspend-participant").ServeHTTP)
				r.Post("/reactivate", otelhttp.NewHandler(kithttp.NewServer(
					reactivateParticipantEndpoint(participants),
					decodeStatusActionReq,
					api.EncodeResponse,
					opts...,
				), "reactivate-participant").ServeHTTP)
				r.Post("/blacklist", otelhttp.NewHandler(kithttp.NewServer(
					blacklistParticipantEndpoint(participants),
					decodeStatusActionReq,
					api.EncodeResponse,
					opts...,
				), "blacklist-participant").ServeHTTP)
			})
		})
	})

	mux.Get("/health", supermq.Health("coordinator", instanceID))
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

func decodeStartRoundReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req startRoundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeGradientReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req gradientReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}
	req.RoundID = chi.URLParam(r, "roundID")

	return req, nil
}

func decodeModelReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req modelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}
	req.RoundID = chi.URLParam(r, "roundID")

	return req, nil
}

func decodeCBORReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentTypeCBOR) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateSize))
	if err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return cborReq{
		data: data,
	}, nil
}

func decodeLatestModelReq(_ context.Context, _ *http.Request) (any, error) {
	return modelVersionReq{}, nil
}

func decodeModelVersionReq(_ context.Context, r *http.Request) (any, error) {
	raw := chi.URLParam(r, "version")
	if raw == "latest" {
		return modelVersionReq{}, nil
	}

	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return modelVersionReq{
		version: v,
	}, nil
}

func decodeRegisterParticipantReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req registerParticipantReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeReputationReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req reputationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}
	req.id = chi.URLParam(r, "nodeID")

	return req, nil
}

func decodeStatusActionReq(_ context.Context, r *http.Request) (any, error) {
	req := statusActionReq{
		id: chi.URLParam(r, "nodeID"),
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.Join(err, apiutil.ErrValidation)
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
