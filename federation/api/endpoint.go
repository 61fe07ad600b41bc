package api

import (
	"context"
	"errors"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fedmesh/fedmesh/federation"
	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/go-kit/kit/endpoint"
)

func connectNodeEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(connectNodeReq)
		if !ok {
			return nodeResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return nodeResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		n, err := svc.ConnectNode(ctx, req.Node)
		if err != nil {
			return nodeResponse{}, err
		}

		return nodeResponse{
			Node:    n,
			created: true,
		}, nil
	}
}

func disconnectNodeEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return nodeResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return nodeResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.DisconnectNode(ctx, req.id); err != nil {
			return nodeResponse{}, err
		}

		return nodeResponse{
			deleted: true,
		}, nil
	}
}

func getNodeEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return nodeResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return nodeResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		n, err := svc.GetNode(ctx, req.id)
		if err != nil {
			return nodeResponse{}, err
		}

		return nodeResponse{
			Node: n,
		}, nil
	}
}

func listNodesEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listNodeResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listNodeResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListNodes(ctx, req.offset, req.limit)
		if err != nil {
			return listNodeResponse{}, err
		}

		return listNodeResponse{
			NodePage: page,
		}, nil
	}
}

func sendMessageEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(messageReq)
		if !ok {
			return messageResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return messageResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.SendMessage(ctx, req.Message); err != nil {
			return messageResponse{}, err
		}

		return messageResponse{
			ID: req.ID,
		}, nil
	}
}

func broadcastMessageEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(messageReq)
		if !ok {
			return messageResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return messageResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.BroadcastMessage(ctx, req.Message); err != nil {
			return messageResponse{}, err
		}

		return messageResponse{
			ID: req.ID,
		}, nil
	}
}

func inboundMessageEndpoint(fedNode *federation.Servicer) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(messageReq)
		if !ok {
			return messageResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return messageResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := fedNode.HandleRPC(ctx, req.Message); err != nil {
			return messageResponse{}, err
		}

		return messageResponse{
			ID: req.ID,
		}, nil
	}
}

func metricsEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		m, err := svc.Metrics(ctx)
		if err != nil {
			return metricsResponse{}, err
		}

		return metricsResponse{
			Metrics: m,
		}, nil
	}
}
