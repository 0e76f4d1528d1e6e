package ctxutil

import "context"

type requestDataKey struct{}

// RequestData identifies the caller of an HTTP request. OwnerID is empty when auth is disabled.
type RequestData struct {
	OwnerID string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// OwnerID returns the authenticated owner or "".
func OwnerID(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.OwnerID
	}
	return ""
}
