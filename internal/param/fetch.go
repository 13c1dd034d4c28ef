package param

import (
	"context"
	"fmt"
)

type Fetcher interface {
	Fetch(context.Context, string) (string, error)
}

// Resolve returns value when it is set, and otherwise looks up path.
// Neither being set is not an error; the caller decides whether empty is valid.
func Resolve(ctx context.Context, f Fetcher, value, path string) (string, error) {
	if value != "" || path == "" {
		return value, nil
	}
	v, err := f.Fetch(ctx, path)
	if err != nil {
		return "", fmt.Errorf("resolve parameter %s: %w", path, err)
	}
	return v, nil
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(context.Context, string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}
