package api

import (
	"context"
	"errors"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fedmesh/fedmesh/coordinator"
	"github.com/fedmesh/fedmesh/participant"
	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/go-kit/kit/endpoint"
)

func startRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(startRoundReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		round, err := svc.StartRound(ctx, req.RoundConfig)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			Round:   round,
			created: true,
		}, nil
	}
}

func roundStatusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		round, err := svc.RoundStatus(ctx, req.id)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			Round: round,
		}, nil
	}
}

func listRoundsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		rounds, err := svc.ListRounds(ctx)
		if err != nil {
			return listRoundsResponse{}, err
		}

		return listRoundsResponse{
			Rounds: rounds,
		}, nil
	}
}

func submitGradientEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(gradientReq)
		if !ok {
			return submissionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return submissionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.SubmitGradient(ctx, req.GradientUpdate); err != nil {
			return submissionResponse{}, err
		}

		return submissionResponse{
			RoundID: req.RoundID,
			NodeID:  req.NodeID,
		}, nil
	}
}

func submitGradientCBOREndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(cborReq)
		if !ok {
			return submissionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return submissionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.SubmitGradientCBOR(ctx, req.data); err != nil {
			return submissionResponse{}, err
		}

		return submissionResponse{}, nil
	}
}

func submitModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(modelReq)
		if !ok {
			return submissionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return submissionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.SubmitModel(ctx, req.ModelUpdate); err != nil {
			return submissionResponse{}, err
		}

		return submissionResponse{
			RoundID: req.RoundID,
			NodeID:  req.NodeID,
		}, nil
	}
}

func submitModelCBOREndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(cborReq)
		if !ok {
			return submissionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return submissionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.SubmitModelCBOR(ctx, req.data); err != nil {
			return submissionResponse{}, err
		}

		return submissionResponse{}, nil
	}
}

func globalModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(modelVersionReq)
		if !ok {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		model, err := svc.GlobalModel(ctx, req.version)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{
			Model: model,
		}, nil
	}
}

func registerParticipantEndpoint(participants *participant.Manager) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(registerParticipantReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := participants.Register(ctx, req.Participant)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{
			Participant: p,
			created:     true,
		}, nil
	}
}

func unregisterParticipantEndpoint(participants *participant.Manager) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := participants.Unregister(ctx, req.id); err != nil {
			return participantResponse{}, err
		}

		return participantResponse{
			deleted: true,
		}, nil
	}
}

func getParticipantEndpoint(participants *participant.Manager) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := participants.Participant(ctx, req.id)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{
			Participant: p,
		}, nil
	}
}

func listParticipantsEndpoint(participants *participant.Manager) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listParticipantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listParticipantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := participants.List(ctx, req.offset, req.limit)
		if err != nil {
			return listParticipantResponse{}, err
		}

		return listParticipantResponse{
			Page: page,
		}, nil
	}
}

func updateReputationEndpoint(participants *participant.Manager) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(reputationReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := participants.UpdateReputation(ctx, req.id, req.Delta, req.Reason)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{
			Participant: p,
		}, nil
	}
}

func suspendParticipantEndpoint(participants *participant.Manager) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(statusActionReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := participants.Suspend(ctx, req.id, req.Reason); err != nil {
			return participantResponse{}, err
		}

		p, err := participants.Participant(ctx, req.id)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{
			Participant: p,
		}, nil
	}
}

func reactivateParticipantEndpoint(participants *participant.Manager) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(statusActionReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := participants.Reactivate(ctx, req.id); err != nil {
			return participantResponse{}, err
		}

		p, err := participants.Participant(ctx, req.id)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{
			Participant: p,
		}, nil
	}
}

func blacklistParticipantEndpoint(participants *participant.Manager) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(statusActionReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := participants.Blacklist(ctx, req.id, req.Reason); err != nil {
			return participantResponse{}, err
		}

		p, err := participants.Participant(ctx, req.id)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{
			Participant: p,
		}, nil
	}
}
