package middleware

import "github.com/aretw0/chronicle/pkg/ports"

// Middleware allows wrapping an ExecutionRepository to add behavior.
type Middleware func(ports.ExecutionRepository) ports.ExecutionRepository

// Chain applies middlewares so that the first one is the outermost.
func Chain(repo ports.ExecutionRepository, mws ...Middleware) ports.ExecutionRepository {
	for i := len(mws) - 1; i >= 0; i-- {
		repo = mws[i](repo)
	}
	return repo
}

// keepAppender re-exposes next's atomic child append on the wrapped repository.
// Appends only touch the children list, which no middleware rewrites.
func keepAppender(wrapped, next ports.ExecutionRepository) ports.ExecutionRepository {
	appender, ok := next.(ports.ChildAppender)
	if !ok {
		return wrapped
	}
	return struct {
		ports.ExecutionRepository
		ports.ChildAppender
	}{wrapped, appender}
}
