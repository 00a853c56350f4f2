package remote

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/models"
	"github.com/dmitrijs2005/possync/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

/*************
 * Fake caller
 *************/

type fakeCaller struct {
	lastMethod string
	lastReq    any

	resp any
	err  error
}

func (f *fakeCaller) Call(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	f.lastMethod = method
	f.lastReq = req
	if f.err != nil {
		return f.err
	}
	if resp != nil && f.resp != nil {
		s, err := rpc.Encode(f.resp)
		if err != nil {
			return err
		}
		return rpc.Decode(s, resp)
	}
	return nil
}

/*************
 * accessTokenInterceptor tests
 *************/

func TestInterceptor_RefreshesTokenOnExpiredAndRetries(t *testing.T) {
	f := &fakeCaller{resp: rpc.LoginResponse{AccessToken: "A2", RefreshToken: "R2"}}
	c := &GRPCClient{client: f, accessToken: "A1", refreshToken: "R1"}

	callCount := 0
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		callCount++
		md, _ := metadata.FromOutgoingContext(ctx)
		toks := md.Get(common.AccessTokenHeaderName)
		require.Len(t, toks, 1)

		if callCount == 1 {
			require.Equal(t, "A1", toks[0])
			return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		require.Equal(t, "A2", toks[0])
		return nil
	}

	err := c.accessTokenInterceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	require.NoError(t, err)
	require.Equal(t, 2, callCount)
	access, refresh := c.tokens()
	require.Equal(t, "A2", access)
	require.Equal(t, "R2", refresh)
	require.Equal(t, rpc.MethodRefreshToken, f.lastMethod)
	require.Equal(t, rpc.RefreshTokenRequest{RefreshToken: "R1"}, f.lastReq)
}

func TestInterceptor_NoRefreshIfNoRefreshToken(t *testing.T) {
	f := &fakeCaller{}
	c := &GRPCClient{client: f, accessToken: "A1"}

	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}

	err := c.accessTokenInterceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	require.Error(t, err)
	require.Empty(t, f.lastMethod)
}

func TestInterceptor_DoesNotRefreshTheRefreshCall(t *testing.T) {
	f := &fakeCaller{}
	c := &GRPCClient{client: f, accessToken: "A1", refreshToken: "R1"}

	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}

	err := c.accessTokenInterceptor(context.Background(), rpc.FullMethod(rpc.MethodRefreshToken), nil, nil, nil, invoker)
	require.Error(t, err)
	require.Empty(t, f.lastMethod)
}

func TestInterceptor_RefreshFailureReturnsOriginalError(t *testing.T) {
	f := &fakeCaller{err: status.Error(codes.Unauthenticated, "refresh token revoked")}
	c := &GRPCClient{client: f, accessToken: "A1", refreshToken: "R1"}

	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}

	err := c.accessTokenInterceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	st, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, common.ErrTokenExpired.Error(), st.Message())
}

func TestInterceptor_IgnoresOtherErrors(t *testing.T) {
	f := &fakeCaller{}
	c := &GRPCClient{client: f, accessToken: "X", refreshToken: "R"}
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Unauthenticated, "some other reason")
	}
	err := c.accessTokenInterceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	require.Error(t, err)
	require.Empty(t, f.lastMethod)
}

/*************
 * mapError tests
 *************/

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		in          error
		wantIs      []error
		unreachable bool
	}{
		{"unavailable", status.Error(codes.Unavailable, "x"), []error{common.ErrRemoteUnreachable}, true},
		{"deadline", status.Error(codes.DeadlineExceeded, "x"), []error{common.ErrRemoteUnreachable}, true},
		{"ctx deadline", context.DeadlineExceeded, []error{common.ErrRemoteUnreachable}, true},
		{"not found", status.Error(codes.NotFound, "x"), []error{common.ErrNotFound}, false},
		{"unauthenticated", status.Error(codes.Unauthenticated, "x"), []error{common.ErrRemoteRejected, common.ErrUnauthorized}, false},
		{"permission", status.Error(codes.PermissionDenied, "x"), []error{common.ErrRemoteRejected, common.ErrPermissionDenied}, false},
		{"fk", status.Error(codes.FailedPrecondition, "x"), []error{common.ErrRemoteRejected, common.ErrReferentialIntegrity}, false},
		{"exists", status.Error(codes.AlreadyExists, "x"), []error{common.ErrRemoteRejected, common.ErrAlreadyExists}, false},
		{"invalid", status.Error(codes.InvalidArgument, "x"), []error{common.ErrRemoteRejected, common.ErrValidation}, false},
		{"internal", status.Error(codes.Internal, "x"), []error{common.ErrRemoteRejected}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError("op", tt.in)
			for _, target := range tt.wantIs {
				assert.ErrorIs(t, err, target)
			}
			assert.Equal(t, tt.unreachable, common.IsRemoteUnreachable(err))
			assert.ErrorContains(t, err, "op")
		})
	}

	require.NoError(t, mapError("op", nil))
}

/*************
 * Fake caller method tests
 *************/

func TestPing_MapsRPCError(t *testing.T) {
	f := &fakeCaller{err: status.Error(codes.Unavailable, "down")}
	c := &GRPCClient{client: f}
	require.ErrorIs(t, c.Ping(context.Background()), common.ErrRemoteUnreachable)
	require.Equal(t, rpc.MethodPing, f.lastMethod)
}

func TestGetSalt_ReturnsSalt(t *testing.T) {
	f := &fakeCaller{resp: rpc.GetSaltResponse{Salt: []byte("salty")}}
	c := &GRPCClient{client: f}

	salt, err := c.GetSalt(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, []byte("salty"), salt)
	require.Equal(t, rpc.GetSaltRequest{Username: "bob"}, f.lastReq)
}

func TestLogin_StoresTokens(t *testing.T) {
	f := &fakeCaller{resp: rpc.LoginResponse{UserID: "u1", AccessToken: "A", RefreshToken: "R"}}
	c := &GRPCClient{client: f}

	id, err := c.Login(context.Background(), "bob", []byte("v"))
	require.NoError(t, err)
	require.Equal(t, "u1", id)
	access, refresh := c.tokens()
	require.Equal(t, "A", access)
	require.Equal(t, "R", refresh)

	c.Logout()
	access, refresh = c.tokens()
	require.Empty(t, access)
	require.Empty(t, refresh)
}

func TestLogin_RejectedCredentials(t *testing.T) {
	f := &fakeCaller{err: status.Error(codes.Unauthenticated, "bad credentials")}
	c := &GRPCClient{client: f}

	_, err := c.Login(context.Background(), "bob", []byte("v"))
	require.True(t, common.IsRemoteRejected(err))
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

/*************
 * bufconn round trip
 *************/

type stubServer struct {
	mu       sync.Mutex
	products map[string]*models.Product
	tokens   []string
	protect  map[string]bool
}

func newStubServer() *stubServer {
	return &stubServer{products: map[string]*models.Product{}, protect: map[string]bool{}}
}

func (s *stubServer) seeToken(ctx context.Context) error {
	md, _ := metadata.FromIncomingContext(ctx)
	tok := md.Get(common.AccessTokenHeaderName)
	s.tokens = append(s.tokens, tok...)
	if len(tok) == 1 && tok[0] == "expired" {
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}
	return nil
}

func recordReply(r models.Record) (*structpb.Struct, error) {
	raw, err := rpc.RecordMessage(r)
	if err != nil {
		return nil, err
	}
	return rpc.Encode(rpc.RecordResponse{Record: raw})
}

func (s *stubServer) request(ctx context.Context, in *structpb.Struct) (rpc.TableRequest, error) {
	var req rpc.TableRequest
	if err := s.seeToken(ctx); err != nil {
		return req, err
	}
	if err := rpc.Decode(in, &req); err != nil {
		return req, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Table != string(models.TableProducts) {
		return req, status.Error(codes.InvalidArgument, "unknown table")
	}
	return req, nil
}

func (s *stubServer) List(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.request(ctx, in); err != nil {
		return nil, err
	}
	recs := make([]models.Record, 0, len(s.products))
	for _, p := range s.products {
		recs = append(recs, p)
	}
	raw, err := rpc.RecordsMessage(recs)
	if err != nil {
		return nil, err
	}
	return rpc.Encode(rpc.RecordsResponse{Records: raw})
}

func (s *stubServer) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, err := s.request(ctx, in)
	if err != nil {
		return nil, err
	}
	p, ok := s.products[req.ID]
	if !ok {
		return nil, status.Error(codes.NotFound, "not found")
	}
	return recordReply(p)
}

func (s *stubServer) FindByKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, err := s.request(ctx, in)
	if err != nil {
		return nil, err
	}
	var recs []models.Record
	for _, p := range s.products {
		if p.IndexValue(req.Column) == req.Value {
			recs = append(recs, p)
		}
	}
	raw, err := rpc.RecordsMessage(recs)
	if err != nil {
		return nil, err
	}
	return rpc.Encode(rpc.RecordsResponse{Records: raw})
}

func (s *stubServer) Upsert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, err := s.request(ctx, in)
	if err != nil {
		return nil, err
	}
	rec, err := models.Decode(models.TableProducts, req.Record)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := rec.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	p := rec.(*models.Product)
	p.OwnerID = "owner-1"
	s.products[p.ID] = p
	return recordReply(p)
}

func (s *stubServer) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, err := s.request(ctx, in)
	if err != nil {
		return nil, err
	}
	p, ok := s.products[req.ID]
	if !ok {
		return nil, status.Error(codes.NotFound, "not found")
	}
	merged, err := models.Merge(p, req.Patch)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.products[req.ID] = merged.(*models.Product)
	return recordReply(merged)
}

func (s *stubServer) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, err := s.request(ctx, in)
	if err != nil {
		return nil, err
	}
	if s.protect[req.ID] {
		return nil, status.Error(codes.FailedPrecondition, "referenced")
	}
	if _, ok := s.products[req.ID]; !ok {
		return nil, status.Error(codes.NotFound, "not found")
	}
	delete(s.products, req.ID)
	return rpc.Encode(nil)
}

func (s *stubServer) Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Encode(rpc.PingResponse{ServerTime: "now"})
}

func (s *stubServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Encode(nil)
}

func (s *stubServer) GetSalt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Encode(rpc.GetSaltResponse{Salt: []byte{1, 2, 3}})
}

func (s *stubServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Encode(rpc.LoginResponse{UserID: "owner-1", AccessToken: "expired", RefreshToken: "R1"})
}

func (s *stubServer) RefreshToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.RefreshTokenRequest
	if err := rpc.Decode(in, &req); err != nil || req.RefreshToken != "R1" {
		return nil, status.Error(codes.Unauthenticated, "bad refresh token")
	}
	return rpc.Encode(rpc.LoginResponse{AccessToken: "fresh", RefreshToken: "R2"})
}

func (s *stubServer) PresignImageUpload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.PresignImageUploadRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, err
	}
	return rpc.Encode(rpc.PresignResponse{Key: "products/" + req.ProductID, URL: "http://s3/put"})
}

func (s *stubServer) PresignImageDownload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Encode(rpc.PresignResponse{URL: "http://s3/get"})
}

func startStub(t *testing.T) (*stubServer, *GRPCClient) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	stub := newStubServer()
	rpc.RegisterRecordServiceServer(srv, stub)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", 0,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return stub, c
}

func TestGRPCClient_RoundTrip(t *testing.T) {
	stub, c := startStub(t)
	ctx := context.Background()

	owner, err := c.Login(ctx, "bob", []byte("v"))
	require.NoError(t, err)
	require.Equal(t, "owner-1", owner)

	// The login token is reported expired, so the first call refreshes it.
	saved, err := c.Upsert(ctx, &models.Product{Base: models.Base{ID: "p1"}, Name: "Tea", Barcode: "111", PriceCents: 250, Active: true})
	require.NoError(t, err)
	require.Equal(t, "owner-1", saved.GetOwnerID())
	require.Contains(t, stub.tokens, "fresh")
	access, _ := c.tokens()
	require.Equal(t, "fresh", access)

	got, err := c.Get(ctx, models.TableProducts, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(250), got.(*models.Product).PriceCents)

	found, err := c.FindByKey(ctx, models.TableProducts, "barcode", "111")
	require.NoError(t, err)
	require.Len(t, found, 1)

	updated, err := c.Update(ctx, models.TableProducts, "p1", map[string]any{"stock": 7})
	require.NoError(t, err)
	require.Equal(t, int64(7), updated.(*models.Product).Stock)

	all, err := c.List(ctx, models.TableProducts)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, c.Delete(ctx, models.TableProducts, "p1"))
	_, err = c.Get(ctx, models.TableProducts, "p1")
	require.ErrorIs(t, err, common.ErrNotFound)
	require.False(t, common.IsRemoteRejected(err))
}

func TestGRPCClient_ErrorsAreClassified(t *testing.T) {
	stub, c := startStub(t)
	ctx := context.Background()

	stub.protect["p9"] = true
	err := c.Delete(ctx, models.TableProducts, "p9")
	require.ErrorIs(t, err, common.ErrReferentialIntegrity)
	require.True(t, common.IsRemoteRejected(err))

	_, err = c.Upsert(ctx, &models.Product{Base: models.Base{ID: "p2"}, PriceCents: 1})
	require.ErrorIs(t, err, common.ErrValidation)
	require.True(t, common.IsRemoteRejected(err))

	_, err = c.List(ctx, models.TableCustomers)
	require.True(t, common.IsRemoteRejected(err))
}

func TestGRPCClient_Presign(t *testing.T) {
	_, c := startStub(t)
	ctx := context.Background()

	key, url, err := c.PresignImageUpload(ctx, "p1", "image/png")
	require.NoError(t, err)
	require.Equal(t, "products/p1", key)
	require.Equal(t, "http://s3/put", url)

	url, err = c.PresignImageDownload(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "http://s3/get", url)
}

func TestGRPCClient_UnreachableServer(t *testing.T) {
	lis := bufconn.Listen(1 << 10)
	require.NoError(t, lis.Close())

	c, err := NewGRPCClient("passthrough:///bufnet", 0,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	defer c.Close()

	err = c.Ping(context.Background())
	require.True(t, common.IsRemoteUnreachable(err), "got %v", err)
	require.False(t, errors.Is(err, common.ErrRemoteRejected))
}
