// Package grpc races unary gRPC calls across replicas and retries single calls
// through a fetch.Fetcher.
package grpc

import (
	"context"
	"errors"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aponysus/firstof/fetch"
	"github.com/aponysus/firstof/policy"
	"github.com/aponysus/firstof/source"
)

// DefaultKeyFunc maps methods to policy keys.
// "/Service/Method" -> {Namespace: "Service", Name: "Method"}
func DefaultKeyFunc(method string) policy.PolicyKey {
	method = strings.TrimPrefix(method, "/")
	parts := strings.Split(method, "/")
	if len(parts) == 2 {
		return policy.PolicyKey{Namespace: parts[0], Name: parts[1]}
	}
	return policy.PolicyKey{Name: method}
}

// Unary returns a source that performs one unary call on conn per attempt.
// newReply must return a fresh reply message for every attempt.
func Unary[Reply any](conn grpc.ClientConnInterface, method string, req any, newReply func() Reply, opts ...grpc.CallOption) source.Source[Reply] {
	return source.Func[Reply](func(ctx context.Context) (Reply, error) {
		reply := newReply()
		if err := conn.Invoke(ctx, method, req, reply, opts...); err != nil {
			var zero Reply
			return zero, err
		}
		return reply, nil
	})
}

// FirstReplica sends the same request to every replica and returns the first
// reply. The policy key is derived from method.
func FirstReplica[Reply any](ctx context.Context, f *fetch.Fetcher, method string, req any, newReply func() Reply, replicas ...grpc.ClientConnInterface) (Reply, bool) {
	sources := make([]source.Source[Reply], len(replicas))
	for i, conn := range replicas {
		sources[i] = Unary(conn, method, req, newReply)
	}
	return fetch.First(ctx, f, DefaultKeyFunc(method), sources)
}

// UnaryClientInterceptor returns a gRPC interceptor that retries calls under
// the policy the Fetcher resolves for each method.
//
// The invoker writes into the caller's reply, so the call is never left
// running once the interceptor returns: when the race gives up waiting the
// in-flight attempt is cancelled and awaited first.
func UnaryClientInterceptor(f *fetch.Fetcher, keyFunc func(method string) policy.PolicyKey) grpc.UnaryClientInterceptor {
	if keyFunc == nil {
		keyFunc = DefaultKeyFunc
	}
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		callCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var (
			mu       sync.Mutex
			stopped  bool
			inflight sync.WaitGroup
		)
		call := source.Func[struct{}](func(attemptCtx context.Context) (struct{}, error) {
			mu.Lock()
			if stopped {
				mu.Unlock()
				return struct{}{}, context.Canceled
			}
			inflight.Add(1)
			mu.Unlock()
			defer inflight.Done()

			// attemptCtx carries the race and attempt info for observers.
			return struct{}{}, invoker(mergeCancel(attemptCtx, callCtx), method, req, reply, cc, opts...)
		})

		_, tl, ok := fetch.FirstWithTimeline(ctx, f, keyFunc(method), []source.Source[struct{}]{call})

		mu.Lock()
		stopped = true
		mu.Unlock()
		cancel()
		inflight.Wait()

		if ok {
			return nil
		}
		return toStatus(tl.FinalErr)
	}
}

// mergeCancel returns ctx cancelled as soon as stop is done.
func mergeCancel(ctx, stop context.Context) context.Context {
	merged, cancel := context.WithCancel(ctx)
	context.AfterFunc(stop, cancel)
	return merged
}

func toStatus(err error) error {
	if err == nil {
		return status.Error(codes.Unavailable, "firstof: call did not complete")
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Unknown, err.Error())
}
