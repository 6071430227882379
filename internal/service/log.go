package service

import (
	"context"

	"github.com/shinyyama/book-market-backend/internal/reqctx"
	"go.uber.org/zap"
)

func withRID(ctx context.Context, fields ...zap.Field) []zap.Field {
	if rid := reqctx.RID(ctx); rid != "" {
		return append(fields, zap.String("rid", rid))
	}
	return fields
}
