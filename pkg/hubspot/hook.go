package hubspot

import "context"

// RetryHook is notified before each retry of a request issued with a
// context carrying it.
type RetryHook func(attempt int, err error)

type retryHookKey struct{}

// ContextWithRetryHook attaches fn to ctx.
func ContextWithRetryHook(ctx context.Context, fn RetryHook) context.Context {
	return context.WithValue(ctx, retryHookKey{}, fn)
}

func retryHookFrom(ctx context.Context) RetryHook {
	fn, _ := ctx.Value(retryHookKey{}).(RetryHook)
	return fn
}
