package fiber

import (
	"context"
	"fmt"
)

// Body is a fiber's entry function: it runs on its own goroutine and
// returns its results or an error, the Go counterpart to wrapping the
// user function "with a standard start closure (root scope + stack-
// trace capture + pcall frame + unpack of results)".
type Body func(f *Fiber) (results []any, err error)

// Spawn creates a fiber record, registers it, and starts body on a
// fresh goroutine, returning the handle immediately — body is not
// guaranteed to have started by the time Spawn returns, matching
// "posts the first resume to the strand" rather than running inline.
func Spawn(reg *Registry, body Body, opts ...Option) *Fiber {
	parent := reg.Current()
	if parent != nil {
		opts = append([]Option{WithSourcePath(parent.SourcePath())}, opts...)
	}

	f := New(opts...)
	reg.Add(f)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.stacktrace = fmt.Sprintf("panic: %v", r)
				log.ErrorS(context.Background(), "recovering panicked fiber",
					fmt.Errorf("%v", r), "fiber_id", f.ID())
				f.Finish(nil, panicError(r))
			}
		}()
		results, err := body(f)
		f.Finish(results, err)
	}()

	return f
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("fiber panic: %v", r)
}
