package auth

import (
	"context"

	"archidoc/core/store"
)

type contextKey string

const (
	sessionKey  contextKey = "archidoc.session"
	profileKey  contextKey = "archidoc.profile"
	clientIPKey contextKey = "archidoc.client_ip"
)

func WithSession(ctx context.Context, sess *store.SessionRecord) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

func SessionFrom(ctx context.Context) *store.SessionRecord {
	sess, _ := ctx.Value(sessionKey).(*store.SessionRecord)
	return sess
}

func WithProfile(ctx context.Context, user *store.UserProfile) context.Context {
	return context.WithValue(ctx, profileKey, user)
}

func ProfileFrom(ctx context.Context) *store.UserProfile {
	user, _ := ctx.Value(profileKey).(*store.UserProfile)
	return user
}

// WithClientIP records the proxy-resolved client address so handlers log
// the real client instead of the proxy in front of it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func ClientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
