package utils

import (
	"context"

	"bitbucket.org/oakcrm/lettings_backend/appctx"
)

var (
	ContextKeyAgencyId      = appctx.ContextKeyAgencyId
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetAgencyIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyAgencyId)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetAgencyIdInContext(ctx context.Context, agencyId string) context.Context {
	return appctx.Set(ctx, ContextKeyAgencyId, agencyId)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
