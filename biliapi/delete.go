package biliapi

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/monitoring"
	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/sirupsen/logrus"
)

// Delete endpoint envelope codes
const (
	deleteAuthInvalidCode = -403
	deleteNotFoundCode    = -404
	deleteTooFrequentCode = 4128002
)

// deleteRequest is the JSON body of the delete call. The type code differs
// from the type tag the feed reports for the same item; see types.DeleteTypeCode.
type deleteRequest struct {
	DynIDStr string `json:"dyn_id_str"`
	DynType  int    `json:"dyn_type"`
	RidStr   string `json:"rid_str"`
}

// DeleteDynamic removes one dynamic and classifies the result. The session
// token is re-derived before every attempt. Rate-limited responses back off
// by DeleteRateLimitDelay x (attempt+1), any other retryable failure by
// DeleteErrorDelay x (attempt+1), within DeleteMaxAttempts total attempts.
// An auth-invalid response is terminal for the item and never retried. A
// not-found response means the item is already gone and counts as success.
func (c *Client) DeleteDynamic(ctx context.Context, item *types.DynamicItem) types.DeletionOutcome {
	ctx, span := monitoring.CreateSpan(ctx, "biliapi.DeleteDynamic")
	defer span.End()
	monitoring.SetSpanAttributes(span, map[string]interface{}{
		"item_id":   item.IDStr,
		"item_type": string(item.Type),
	})

	if item.IDStr == "" {
		return types.DeletionOutcome{Status: types.DeleteFailed, Message: "item has no id"}
	}

	payload := deleteRequest{
		DynIDStr: item.IDStr,
		DynType:  types.DeleteTypeCode(item.Type),
		RidStr:   item.IDStr,
	}

	var lastMessage string
	for attempt := 0; attempt < c.pipeline.DeleteMaxAttempts; attempt++ {
		creds, err := c.tokens()
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"item_id": item.IDStr,
				"error":   err.Error(),
			}).Error("Failed to derive session token for deletion")
			return types.DeletionOutcome{Status: types.DeleteAuthInvalid, Message: err.Error(), Attempts: attempt + 1}
		}

		deleteURL := fmt.Sprintf("%s/x/dynamic/feed/operate/remove?platform=web&csrf=%s",
			c.cfg.APIBaseURL, url.QueryEscape(creds.CSRFToken))

		envelope, err := c.postJSON(ctx, "delete", deleteURL, payload, c.cfg.DeleteTimeout)
		if err != nil {
			lastMessage = err.Error()
			monitoring.RecordDeletion("transport_error")
			c.logger.WithFields(logrus.Fields{
				"item_id": item.IDStr,
				"attempt": attempt + 1,
				"error":   lastMessage,
			}).Warn("Delete request failed")
			if backoffErr := sleepCtx(ctx, c.pipeline.DeleteErrorDelay*time.Duration(attempt+1)); backoffErr != nil {
				break
			}
			continue
		}

		switch envelope.Code {
		case 0:
			monitoring.RecordDeletion(string(types.DeleteSucceeded))
			return types.DeletionOutcome{Status: types.DeleteSucceeded, Attempts: attempt + 1}
		case deleteNotFoundCode:
			monitoring.RecordDeletion(string(types.DeleteAlreadyGone))
			return types.DeletionOutcome{Status: types.DeleteAlreadyGone, Attempts: attempt + 1}
		case deleteAuthInvalidCode:
			monitoring.RecordDeletion(string(types.DeleteAuthInvalid))
			c.logger.WithField("item_id", item.IDStr).Error("Session token rejected, deletion aborted for item")
			return types.DeletionOutcome{Status: types.DeleteAuthInvalid, Message: envelope.Message, Attempts: attempt + 1}
		case deleteTooFrequentCode:
			lastMessage = envelope.Message
			monitoring.RecordDeletion(string(types.DeleteRateLimited))
			c.logger.WithFields(logrus.Fields{
				"item_id": item.IDStr,
				"attempt": attempt + 1,
			}).Warn("Delete rate limited, backing off")
			if backoffErr := sleepCtx(ctx, c.pipeline.DeleteRateLimitDelay*time.Duration(attempt+1)); backoffErr != nil {
				return types.DeletionOutcome{Status: types.DeleteRateLimited, Message: lastMessage, Attempts: attempt + 1}
			}
		default:
			lastMessage = fmt.Sprintf("%s (code: %d)", envelope.Message, envelope.Code)
			c.logger.WithFields(logrus.Fields{
				"item_id": item.IDStr,
				"attempt": attempt + 1,
				"code":    envelope.Code,
			}).Warn("Delete rejected, retrying")
			if backoffErr := sleepCtx(ctx, c.pipeline.DeleteErrorDelay*time.Duration(attempt+1)); backoffErr != nil {
				monitoring.RecordDeletion(string(types.DeleteFailed))
				return types.DeletionOutcome{Status: types.DeleteFailed, Message: lastMessage, Attempts: attempt + 1}
			}
		}
	}

	monitoring.RecordDeletion(string(types.DeleteFailed))
	return types.DeletionOutcome{
		Status:   types.DeleteFailed,
		Message:  lastMessage,
		Attempts: c.pipeline.DeleteMaxAttempts,
	}
}
