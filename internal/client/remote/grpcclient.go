package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/models"
	"github.com/dmitrijs2005/possync/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// DefaultTimeout bounds each remote call.
const DefaultTimeout = 10 * time.Second

type caller interface {
	Call(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error
}

type GRPCClient struct {
	endpointURL string
	timeout     time.Duration
	conn        *grpc.ClientConn
	client      caller

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
}

var (
	_ Remote = (*GRPCClient)(nil)
	_ Auth   = (*GRPCClient)(nil)
	_ Images = (*GRPCClient)(nil)
)

// NewGRPCClient creates a client for endpointURL. No connection is made
// until the first call. Extra dial options are appended (tests use them to
// dial an in-memory listener).
func NewGRPCClient(endpointURL string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCClient, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &GRPCClient{endpointURL: endpointURL, timeout: timeout}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = rpc.NewClient(conn)
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) tokens() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.refreshToken
}

func (c *GRPCClient) setTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken, c.refreshToken = access, refresh
}

// accessTokenInterceptor attaches the access token and, when the server
// reports it expired, refreshes the pair once and retries.
func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	access, refresh := c.tokens()
	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
	if err == nil || method == rpc.FullMethod(rpc.MethodRefreshToken) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}
	if refresh == "" {
		return err
	}

	var resp rpc.LoginResponse
	if rerr := c.client.Call(ctx, rpc.MethodRefreshToken, rpc.RefreshTokenRequest{RefreshToken: refresh}, &resp); rerr != nil {
		return err
	}
	c.setTokens(resp.AccessToken, resp.RefreshToken)

	return invoker(withAccessToken(ctx, resp.AccessToken), method, req, reply, cc, opts...)
}

func (c *GRPCClient) call(ctx context.Context, method string, req, resp any) error {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.client.Call(ctx, method, req, resp)
}

func (c *GRPCClient) List(ctx context.Context, table models.Table) ([]models.Record, error) {
	var resp rpc.RecordsResponse
	if err := c.call(ctx, rpc.MethodList, rpc.TableRequest{Table: string(table)}, &resp); err != nil {
		return nil, mapError("list "+string(table), err)
	}
	return rpc.DecodeRecords(table, resp.Records)
}

func (c *GRPCClient) Get(ctx context.Context, table models.Table, id string) (models.Record, error) {
	var resp rpc.RecordResponse
	if err := c.call(ctx, rpc.MethodGet, rpc.TableRequest{Table: string(table), ID: id}, &resp); err != nil {
		return nil, mapError(fmt.Sprintf("get %s/%s", table, id), err)
	}
	return models.Decode(table, resp.Record)
}

func (c *GRPCClient) FindByKey(ctx context.Context, table models.Table, column, value string) ([]models.Record, error) {
	var resp rpc.RecordsResponse
	req := rpc.TableRequest{Table: string(table), Column: column, Value: value}
	if err := c.call(ctx, rpc.MethodFindByKey, req, &resp); err != nil {
		return nil, mapError(fmt.Sprintf("find %s by %s", table, column), err)
	}
	return rpc.DecodeRecords(table, resp.Records)
}

func (c *GRPCClient) Upsert(ctx context.Context, rec models.Record) (models.Record, error) {
	raw, err := rpc.RecordMessage(rec)
	if err != nil {
		return nil, err
	}

	var resp rpc.RecordResponse
	op := fmt.Sprintf("upsert %s/%s", rec.Table(), rec.GetID())
	if err := c.call(ctx, rpc.MethodUpsert, rpc.TableRequest{Table: string(rec.Table()), Record: raw}, &resp); err != nil {
		return nil, mapError(op, err)
	}
	return models.Decode(rec.Table(), resp.Record)
}

func (c *GRPCClient) Update(ctx context.Context, table models.Table, id string, patch map[string]any) (models.Record, error) {
	var resp rpc.RecordResponse
	req := rpc.TableRequest{Table: string(table), ID: id, Patch: patch}
	if err := c.call(ctx, rpc.MethodUpdate, req, &resp); err != nil {
		return nil, mapError(fmt.Sprintf("update %s/%s", table, id), err)
	}
	return models.Decode(table, resp.Record)
}

func (c *GRPCClient) Delete(ctx context.Context, table models.Table, id string) error {
	if err := c.call(ctx, rpc.MethodDelete, rpc.TableRequest{Table: string(table), ID: id}, nil); err != nil {
		return mapError(fmt.Sprintf("delete %s/%s", table, id), err)
	}
	return nil
}

func (c *GRPCClient) Register(ctx context.Context, username string, salt, verifier []byte) error {
	req := rpc.RegisterRequest{Username: username, Salt: salt, Verifier: verifier}
	if err := c.call(ctx, rpc.MethodRegister, req, nil); err != nil {
		return mapError("register", err)
	}
	return nil
}

func (c *GRPCClient) GetSalt(ctx context.Context, username string) ([]byte, error) {
	var resp rpc.GetSaltResponse
	if err := c.call(ctx, rpc.MethodGetSalt, rpc.GetSaltRequest{Username: username}, &resp); err != nil {
		return nil, mapError("get salt", err)
	}
	return resp.Salt, nil
}

func (c *GRPCClient) Login(ctx context.Context, username string, verifier []byte) (string, error) {
	var resp rpc.LoginResponse
	if err := c.call(ctx, rpc.MethodLogin, rpc.LoginRequest{Username: username, Verifier: verifier}, &resp); err != nil {
		return "", mapError("login", err)
	}
	c.setTokens(resp.AccessToken, resp.RefreshToken)
	return resp.UserID, nil
}

// Logout forgets the session tokens.
func (c *GRPCClient) Logout() {
	c.setTokens("", "")
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	var resp rpc.PingResponse
	if err := c.call(ctx, rpc.MethodPing, nil, &resp); err != nil {
		return mapError("ping", err)
	}
	return nil
}

func (c *GRPCClient) PresignImageUpload(ctx context.Context, productID, contentType string) (string, string, error) {
	var resp rpc.PresignResponse
	req := rpc.PresignImageUploadRequest{ProductID: productID, ContentType: contentType}
	if err := c.call(ctx, rpc.MethodPresignImageUpload, req, &resp); err != nil {
		return "", "", mapError("presign image upload", err)
	}
	return resp.Key, resp.URL, nil
}

func (c *GRPCClient) PresignImageDownload(ctx context.Context, key string) (string, error) {
	var resp rpc.PresignResponse
	if err := c.call(ctx, rpc.MethodPresignImageDownload, rpc.PresignImageDownloadRequest{Key: key}, &resp); err != nil {
		return "", mapError("presign image download", err)
	}
	return resp.URL, nil
}
