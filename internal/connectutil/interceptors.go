package connectutil

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/pitabwire/frame/security"
	securityhttp "github.com/pitabwire/frame/security/interceptors/httptor"
)

// DefaultOptions returns the handler options of the bot service.
func DefaultOptions() []connect.HandlerOption {
	return []connect.HandlerOption{
		connect.WithCodec(NewJSONCodec()),
		connect.WithInterceptors(NewLoggingInterceptor()),
	}
}

// AuthenticatedHTTPMiddleware puts frame's bearer-token check in front of
// every route: Connect, REST, the websocket stream and the webhook API.
// Without an authenticator the handler is returned as is.
func AuthenticatedHTTPMiddleware(handler http.Handler, authenticator security.Authenticator) http.Handler {
	if authenticator == nil {
		return handler
	}
	return securityhttp.AuthenticationMiddleware(handler, authenticator)
}

// DefaultClientOptions mirrors DefaultOptions for clients.
func DefaultClientOptions() []connect.ClientOption {
	return []connect.ClientOption{
		connect.WithCodec(NewJSONCodec()),
		connect.WithInterceptors(NewLoggingInterceptor()),
	}
}

type loggingInterceptor struct{}

// NewLoggingInterceptor logs every call with its procedure, duration and
// Connect code. Failures log at warn level, successes at debug.
func NewLoggingInterceptor() connect.Interceptor {
	return loggingInterceptor{}
}

func logCall(ctx context.Context, procedure string, start time.Time, err error, attrs ...any) {
	attrs = append(attrs,
		slog.String("procedure", procedure),
		slog.Duration("duration", time.Since(start)),
	)
	if err == nil {
		slog.DebugContext(ctx, "rpc ok", attrs...)
		return
	}
	attrs = append(attrs,
		slog.String("code", connect.CodeOf(err).String()),
		slog.String("error", err.Error()))
	slog.WarnContext(ctx, "rpc failed", attrs...)
}

func (loggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		logCall(ctx, req.Spec().Procedure, start, err, slog.Bool("client", req.Spec().IsClient))
		return resp, err
	}
}

func (loggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		slog.DebugContext(ctx, "rpc stream opened", slog.String("procedure", spec.Procedure))
		return next(ctx, spec)
	}
}

func (loggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := time.Now()
		err := next(ctx, conn)
		logCall(ctx, conn.Spec().Procedure, start, err, slog.Bool("stream", true))
		return err
	}
}
