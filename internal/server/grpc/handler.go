package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/possync/internal/models"
	"github.com/dmitrijs2005/possync/internal/rpc"
)

func decode(in *structpb.Struct, msg any) error {
	if err := rpc.Decode(in, msg); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func owner(ctx context.Context) (string, error) {
	id, ok := userIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "unauthorized")
	}
	return id, nil
}

// tableCall decodes a TableRequest and resolves the caller's owner id.
func tableCall(ctx context.Context, in *structpb.Struct) (string, *rpc.TableRequest, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return "", nil, err
	}
	var req rpc.TableRequest
	if err := decode(in, &req); err != nil {
		return "", nil, err
	}
	return ownerID, &req, nil
}

func recordReply(r models.Record) (*structpb.Struct, error) {
	raw, err := rpc.RecordMessage(r)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return rpc.Encode(rpc.RecordResponse{Record: raw})
}

func recordsReply(recs []models.Record) (*structpb.Struct, error) {
	raw, err := rpc.RecordsMessage(recs)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return rpc.Encode(rpc.RecordsResponse{Records: raw})
}

func (s *GRPCServer) List(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ownerID, req, err := tableCall(ctx, in)
	if err != nil {
		return nil, err
	}
	recs, err := s.records.List(ctx, ownerID, req.Table)
	if err != nil {
		return nil, toStatus(err)
	}
	return recordsReply(recs)
}

func (s *GRPCServer) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ownerID, req, err := tableCall(ctx, in)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.Get(ctx, ownerID, req.Table, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return recordReply(rec)
}

func (s *GRPCServer) FindByKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ownerID, req, err := tableCall(ctx, in)
	if err != nil {
		return nil, err
	}
	recs, err := s.records.FindByKey(ctx, ownerID, req.Table, req.Column, req.Value)
	if err != nil {
		return nil, toStatus(err)
	}
	return recordsReply(recs)
}

func (s *GRPCServer) Upsert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ownerID, req, err := tableCall(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(req.Record) == 0 {
		return nil, status.Error(codes.InvalidArgument, "record is required")
	}
	rec, err := s.records.Upsert(ctx, ownerID, req.Table, req.Record)
	if err != nil {
		return nil, toStatus(err)
	}
	return recordReply(rec)
}

func (s *GRPCServer) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ownerID, req, err := tableCall(ctx, in)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.Update(ctx, ownerID, req.Table, req.ID, req.Patch)
	if err != nil {
		return nil, toStatus(err)
	}
	return recordReply(rec)
}

func (s *GRPCServer) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ownerID, req, err := tableCall(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.records.Delete(ctx, ownerID, req.Table, req.ID); err != nil {
		s.logger.Info(ctx, "delete refused", "table", req.Table, "id", req.ID, "error", err.Error())
		return nil, toStatus(err)
	}
	return rpc.Encode(nil)
}

func (s *GRPCServer) Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Encode(rpc.PingResponse{ServerTime: time.Now().UTC().Format(time.RFC3339)})
}

func (s *GRPCServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.RegisterRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Registration request", "username", req.Username)

	u, err := s.users.Register(ctx, req.Username, req.Salt, req.Verifier)
	if err != nil {
		s.logger.Warn(ctx, "registration failed", "username", req.Username, "error", err.Error())
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "Registered", "username", req.Username, "id", u.ID)
	return rpc.Encode(nil)
}

func (s *GRPCServer) GetSalt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.GetSaltRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	salt, err := s.users.GetSalt(ctx, req.Username)
	if err != nil {
		return nil, toStatus(err)
	}
	return rpc.Encode(rpc.GetSaltResponse{Salt: salt})
}

func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.LoginRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	tokens, err := s.users.Login(ctx, req.Username, req.Verifier)
	if err != nil {
		return nil, toStatus(err)
	}
	return rpc.Encode(rpc.LoginResponse{
		UserID:       tokens.UserID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

func (s *GRPCServer) RefreshToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.RefreshTokenRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}
	return rpc.Encode(rpc.LoginResponse{
		UserID:       tokens.UserID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

func (s *GRPCServer) PresignImageUpload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	var req rpc.PresignImageUploadRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	key, url, err := s.images.PresignUpload(ctx, ownerID, req.ProductID, req.ContentType)
	if err != nil {
		return nil, toStatus(err)
	}
	return rpc.Encode(rpc.PresignResponse{Key: key, URL: url})
}

func (s *GRPCServer) PresignImageDownload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	var req rpc.PresignImageDownloadRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	url, err := s.images.PresignDownload(ctx, ownerID, req.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	return rpc.Encode(rpc.PresignResponse{URL: url})
}
