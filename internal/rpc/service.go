// Package rpc declares the possync gRPC service shared by the POS client and
// the server. Messages travel as google.protobuf.Struct values, so the
// default proto codec carries them without generated code; the typed Go
// messages in messages.go are converted with Encode and Decode.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "possync.v1.RecordService"

const (
	MethodList                 = "List"
	MethodGet                  = "Get"
	MethodFindByKey            = "FindByKey"
	MethodUpsert               = "Upsert"
	MethodUpdate               = "Update"
	MethodDelete               = "Delete"
	MethodPing                 = "Ping"
	MethodRegister             = "Register"
	MethodGetSalt              = "GetSalt"
	MethodLogin                = "Login"
	MethodRefreshToken         = "RefreshToken"
	MethodPresignImageUpload   = "PresignImageUpload"
	MethodPresignImageDownload = "PresignImageDownload"
)

// FullMethod returns the "/service/method" path used by gRPC.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// RecordServiceServer is implemented by the server.
type RecordServiceServer interface {
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FindByKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Upsert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSalt(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PresignImageUpload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PresignImageDownload(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(RecordServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn call) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(RecordServiceServer)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecordServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodList, RecordServiceServer.List),
		unary(MethodGet, RecordServiceServer.Get),
		unary(MethodFindByKey, RecordServiceServer.FindByKey),
		unary(MethodUpsert, RecordServiceServer.Upsert),
		unary(MethodUpdate, RecordServiceServer.Update),
		unary(MethodDelete, RecordServiceServer.Delete),
		unary(MethodPing, RecordServiceServer.Ping),
		unary(MethodRegister, RecordServiceServer.Register),
		unary(MethodGetSalt, RecordServiceServer.GetSalt),
		unary(MethodLogin, RecordServiceServer.Login),
		unary(MethodRefreshToken, RecordServiceServer.RefreshToken),
		unary(MethodPresignImageUpload, RecordServiceServer.PresignImageUpload),
		unary(MethodPresignImageDownload, RecordServiceServer.PresignImageDownload),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "possync/v1/record_service.proto",
}

func RegisterRecordServiceServer(s grpc.ServiceRegistrar, srv RecordServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client invokes RecordService methods over a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call sends req (any message of this package) to method and decodes the
// reply into resp, which may be nil.
func (c *Client) Call(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := Encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return Decode(out, resp)
}
