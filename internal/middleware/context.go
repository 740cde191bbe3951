package middleware

import "context"

type contextKey struct{}

// userHolder is filled in by RecordUser and read back by Logger once the
// request has been served.
type userHolder struct {
	userID string
}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, contextKey{}, h)
}

func userHolderFrom(ctx context.Context) *userHolder {
	h, _ := ctx.Value(contextKey{}).(*userHolder)
	return h
}
