// Package grpc exposes the record, auth and image services over gRPC.
package grpc

import (
	"context"
	"encoding/json"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/possync/internal/logging"
	"github.com/dmitrijs2005/possync/internal/models"
	"github.com/dmitrijs2005/possync/internal/rpc"
	sm "github.com/dmitrijs2005/possync/internal/server/models"
	"github.com/dmitrijs2005/possync/internal/server/services"
)

// UserService is the subset of services.UserService used by the handlers.
type UserService interface {
	Register(ctx context.Context, username string, salt, verifier []byte) (*sm.User, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	UserIDFromToken(token string) (string, error)
}

type RecordService interface {
	List(ctx context.Context, ownerID, table string) ([]models.Record, error)
	Get(ctx context.Context, ownerID, table, id string) (models.Record, error)
	FindByKey(ctx context.Context, ownerID, table, column, value string) ([]models.Record, error)
	Upsert(ctx context.Context, ownerID, table string, data json.RawMessage) (models.Record, error)
	Update(ctx context.Context, ownerID, table, id string, patch map[string]any) (models.Record, error)
	Delete(ctx context.Context, ownerID, table, id string) error
}

type ImageService interface {
	PresignUpload(ctx context.Context, ownerID, productID, contentType string) (string, string, error)
	PresignDownload(ctx context.Context, ownerID, key string) (string, error)
}

type GRPCServer struct {
	address string
	users   UserService
	records RecordService
	images  ImageService
	logger  logging.Logger
}

var _ rpc.RecordServiceServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, us UserService, rs RecordService, is ImageService) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		records: rs,
		images:  is,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	rpc.RegisterRecordServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
