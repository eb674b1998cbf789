package metrics

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	grpc_core "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ovmcloud/ocfs2-manager/pkg/grpc"
	"github.com/ovmcloud/ocfs2-manager/pkg/metrics"
)

const (
	grpcRequestPackageAttributeKey = "grpc.request.package"
	grpcRequestServiceAttributeKey = "grpc.request.service"
	grpcRequestMethodAttributeKey  = "grpc.request.method"

	grpcResponseStatusCodeAttributeKey      = "grpc.response.statusCode"
	grpcResponseStatusMessageAttributeKey   = "grpc.response.statusMessage"
	grpcResponseStatusCodeLevelAttributeKey = "grpc.response.statusCodeLevel"

	resultCodeAttributeKey      = "ocfs2.response.resultCode"
	resultCodeLevelAttributeKey = "ocfs2.response.resultCodeLevel"

	// Verdict responses carry a boolean success field
	successFieldName  = "success"
	successResultCode = "SUCCESS"
	failureResultCode = "FAILURE"
)

type level string

const (
	infoLevel    level = "info"
	warningLevel level = "warning"
	errorLevel   level = "error"
)

// Codes missing from the table are reported at errorLevel
var statusCodeLevels = map[codes.Code]level{
	codes.OK:              infoLevel,
	codes.AlreadyExists:   infoLevel,
	codes.Canceled:        infoLevel,
	codes.InvalidArgument: infoLevel,
	codes.NotFound:        infoLevel,
	codes.Unauthenticated: infoLevel,

	// Vetoed preparations and contended cluster locks land here
	codes.Aborted:            warningLevel,
	codes.DeadlineExceeded:   warningLevel,
	codes.FailedPrecondition: warningLevel,
	codes.OutOfRange:         warningLevel,
	codes.PermissionDenied:   warningLevel,
	codes.ResourceExhausted:  warningLevel,
	codes.Unavailable:        warningLevel,
}

var resultCodeLevels = map[string]level{
	successResultCode: infoLevel,
	failureResultCode: warningLevel,
}

func statusCodeLevel(code codes.Code) level {
	if l, ok := statusCodeLevels[code]; ok {
		return l
	}
	return errorLevel
}

func resultCodeLevel(resultCode string) level {
	if l, ok := resultCodeLevels[resultCode]; ok {
		return l
	}
	return errorLevel
}

// CustomNewRelicUnaryServerInterceptor starts a New Relic transaction per
// call, tagged with the parsed method name, the gRPC status and, for verdict
// responses, the result code. A nil app disables it.
func CustomNewRelicUnaryServerInterceptor(app *newrelic.Application) grpc_core.UnaryServerInterceptor {
	if app == nil {
		return func(ctx context.Context, req interface{}, info *grpc_core.UnaryServerInfo, handler grpc_core.UnaryHandler) (interface{}, error) {
			return handler(ctx, req)
		}
	}

	return func(ctx context.Context, req interface{}, info *grpc_core.UnaryServerInfo, handler grpc_core.UnaryHandler) (interface{}, error) {
		// Handlers record events and counts through the injected app
		ctx = context.WithValue(ctx, metrics.NewRelicContextKey{}, app)

		m := startTransaction(ctx, app, info.FullMethod)
		defer m.End()

		ctx = newrelic.NewContext(ctx, m)

		includeParsedFullMethodName(m, info.FullMethod)

		resp, err := handler(ctx, req)
		includeGRPCStatusCode(m, err)
		if err != nil {
			return nil, err
		}

		if msg, ok := resp.(proto.Message); ok {
			includeResultCode(m, msg)
		}

		return resp, nil
	}
}

func CustomNewRelicStreamServerInterceptor(app *newrelic.Application) grpc_core.StreamServerInterceptor {
	if app == nil {
		return func(srv interface{}, ss grpc_core.ServerStream, info *grpc_core.StreamServerInfo, handler grpc_core.StreamHandler) error {
			return handler(srv, ss)
		}
	}

	return func(srv interface{}, ss grpc_core.ServerStream, info *grpc_core.StreamServerInfo, handler grpc_core.StreamHandler) error {
		ctx := context.WithValue(ss.Context(), metrics.NewRelicContextKey{}, app)

		m := startTransaction(ctx, app, info.FullMethod)
		defer m.End()

		ctx = newrelic.NewContext(ctx, m)

		includeParsedFullMethodName(m, info.FullMethod)

		err := handler(srv, newWrappedStream(ctx, m, ss))
		includeGRPCStatusCode(m, err)
		return err
	}
}

type wrappedStream struct {
	ctx context.Context
	txn *newrelic.Transaction
	grpc_core.ServerStream
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}

func (w *wrappedStream) SendMsg(m interface{}) error {
	if msg, ok := m.(proto.Message); ok {
		includeResultCode(w.txn, msg)
	}
	return w.ServerStream.SendMsg(m)
}

func newWrappedStream(ctx context.Context, m *newrelic.Transaction, wrapped grpc_core.ServerStream) grpc_core.ServerStream {
	return &wrappedStream{ctx, m, wrapped}
}

func startTransaction(ctx context.Context, app *newrelic.Application, fullMethod string) *newrelic.Transaction {
	method := strings.TrimPrefix(fullMethod, "/")

	// Agent tokens never travel over the admin API, so every incoming header
	// is forwarded.
	var hdrs http.Header
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		hdrs = make(http.Header, len(md))
		for k, vs := range md {
			for _, v := range vs {
				hdrs.Add(k, v)
			}
		}
	}

	target := hdrs.Get(":authority")
	url := getURL(method, target)

	webReq := newrelic.WebRequest{
		Header:    hdrs,
		URL:       url,
		Method:    method,
		Transport: newrelic.TransportHTTP,
	}
	txn := app.StartTransaction(method)
	txn.SetWebRequest(webReq)

	return txn
}

func getURL(method, target string) *url.URL {
	var host string
	// target can be anything from
	// https://github.com/grpc/grpc/blob/master/doc/naming.md
	// see https://godoc.org/google.golang.org/grpc#DialContext
	if strings.HasPrefix(target, "unix:") {
		host = "localhost"
	} else {
		host = strings.TrimPrefix(target, "dns:///")
	}
	return &url.URL{
		Scheme: "grpc",
		Host:   host,
		Path:   method,
	}
}

func includeGRPCStatusCode(m *newrelic.Transaction, err error) {
	s := status.Convert(err)
	l := statusCodeLevel(s.Code())

	m.SetWebResponse(nil).WriteHeader(int(codes.OK))
	m.AddAttribute(grpcResponseStatusCodeAttributeKey, s.Code().String())
	m.AddAttribute(grpcResponseStatusMessageAttributeKey, s.Message())
	m.AddAttribute(grpcResponseStatusCodeLevelAttributeKey, string(l))

	if l == errorLevel {
		m.NoticeError(&newrelic.Error{
			Message: s.Message(),
			Class:   "gRPC Status: " + s.Code().String(),
		})
	}
}

// includeResultCode augments the transaction with the outcome of verdict
// responses. Other responses are left as is.
func includeResultCode(m *newrelic.Transaction, msg proto.Message) {
	resultCode, ok := getResultCode(msg)
	if !ok {
		return
	}

	l := resultCodeLevel(resultCode)
	m.AddAttribute(resultCodeAttributeKey, resultCode)
	m.AddAttribute(resultCodeLevelAttributeKey, string(l))

	if l == errorLevel {
		m.NoticeError(&newrelic.Error{
			Class: "RPC Result: " + resultCode,
		})
	}
}

func getResultCode(msg proto.Message) (string, bool) {
	s, ok := msg.(*structpb.Struct)
	if !ok {
		return "", false
	}

	v, ok := s.GetFields()[successFieldName]
	if !ok {
		return "", false
	}

	success, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return "", false
	}

	if success.BoolValue {
		return successResultCode, true
	}
	return failureResultCode, true
}

func includeParsedFullMethodName(m *newrelic.Transaction, fullMethodName string) {
	packageName, serviceName, methodName, err := grpc.ParseFullMethodName(fullMethodName)
	if err != nil {
		return
	}

	m.AddAttribute(grpcRequestPackageAttributeKey, packageName)
	m.AddAttribute(grpcRequestServiceAttributeKey, serviceName)
	m.AddAttribute(grpcRequestMethodAttributeKey, methodName)
}
