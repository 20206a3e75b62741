package service

import (
	"context"
	"fmt"

	"github.com/gogotex/docstore/internal/document"
	"github.com/gogotex/docstore/pkg/logger"
	"github.com/gogotex/docstore/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// checkETag decides the outcome of a mutation that has already been applied,
// given the document it replaced. When the previous document carried an etag
// other than the one the client presented, the previous document is written
// back and the outcome is a conflict.
func (s *Service) checkETag(ctx context.Context, op string, c document.Collection, filter bson.D, old document.Document, requestETag *primitive.ObjectID) (document.Outcome, error) {
	oldETag, ok := document.ETagOf(old)
	if !ok {
		// never versioned, nothing to conflict with
		return document.OutcomeUpdated, nil
	}
	if requestETag != nil && *requestETag == oldETag {
		return document.OutcomeGone, nil
	}

	if err := c.ReplaceOne(ctx, filter, old, true); err != nil {
		return document.OutcomeConflict, fmt.Errorf("restore %s after etag conflict: %w", c.FullName(), err)
	}
	metrics.DocumentRollbacks.WithLabelValues(op).Inc()
	logger.Debugf("%s on %s rolled back: etag %s does not match %s", op, c.FullName(), oldETag.Hex(), presented(requestETag))
	return document.OutcomeConflict, nil
}

func presented(etag *primitive.ObjectID) string {
	if etag == nil {
		return "<none>"
	}
	return etag.Hex()
}
