package biliapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/monitoring"
	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/sirupsen/logrus"
)

// The lottery endpoint answers these codes for posts the giveaway service
// does not know about; they are a legitimate "not a giveaway" result and
// terminate retries immediately.
var lotteryNotApplicableCodes = map[int]bool{
	-400:  true,
	-9999: true,
}

// lotteryData is the payload of a giveaway status response. Status is a
// pointer because a null status means the post is not a giveaway.
type lotteryData struct {
	Status *int `json:"status"`
}

// LotteryStatus queries whether the given post is a giveaway and in what
// lifecycle state. Retries up to maxRetries extra attempts (0-5) on anything
// but a "not applicable" response, backing off by base delay times the
// attempt number. Exhausting retries yields an unresolved outcome with the
// classified error kind; callers must treat unresolved as "skip, do not
// delete".
func (c *Client) LotteryStatus(ctx context.Context, dynamicID string, maxRetries int) types.LotteryOutcome {
	ctx, span := monitoring.CreateSpan(ctx, "biliapi.LotteryStatus")
	defer span.End()
	monitoring.SetSpanAttributes(span, map[string]interface{}{"dynamic_id": dynamicID})

	lotteryURL := fmt.Sprintf("%s/lottery_svr/v1/lottery_svr/lottery_notice?business_type=4&business_id=%s",
		c.cfg.LotteryBaseURL, dynamicID)

	var lastKind types.LotteryErrorKind
	attempt := 0
	for {
		outcome, retryable, kind := c.lotteryAttempt(ctx, lotteryURL)
		if !retryable {
			outcome.Attempts = attempt
			if outcome.Resolved {
				if outcome.IsLottery {
					monitoring.RecordLotteryLookup("lottery")
				} else {
					monitoring.RecordLotteryLookup("not_lottery")
				}
			}
			return outcome
		}

		lastKind = kind
		attempt++
		if attempt > maxRetries {
			break
		}

		delay := c.pipeline.LotteryRetryBase * time.Duration(attempt)
		c.logger.WithFields(logrus.Fields{
			"dynamic_id": dynamicID,
			"attempt":    attempt,
			"max":        maxRetries,
			"error_kind": kind,
		}).Warn("Giveaway lookup failed, retrying")
		if err := sleepCtx(ctx, delay); err != nil {
			break
		}
	}

	monitoring.RecordLotteryLookup("unresolved")
	c.logger.WithFields(logrus.Fields{
		"dynamic_id": dynamicID,
		"attempts":   attempt,
		"error_kind": lastKind,
	}).Error("Giveaway lookup unresolved after retries")
	return types.LotteryOutcome{Resolved: false, ErrorKind: lastKind, Attempts: attempt}
}

// lotteryAttempt performs one lookup. It returns the outcome, whether the
// failure is retryable, and the classified error kind for unresolved results.
func (c *Client) lotteryAttempt(ctx context.Context, url string) (types.LotteryOutcome, bool, types.LotteryErrorKind) {
	envelope, err := c.get(ctx, "lottery", url, c.cfg.LotteryTimeout)
	if err != nil {
		switch KindOf(err) {
		case KindTimeout:
			return types.LotteryOutcome{}, true, types.LotteryErrTimeout
		case KindProtocol:
			return types.LotteryOutcome{}, true, types.LotteryErrProtocol
		default:
			return types.LotteryOutcome{}, true, types.LotteryErrNetwork
		}
	}

	if envelope.Code == 0 {
		var data lotteryData
		if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
			if err := json.Unmarshal(envelope.Data, &data); err != nil {
				return types.LotteryOutcome{}, true, types.LotteryErrProtocol
			}
		}
		if data.Status == nil {
			// Null or absent status: the post exists but is not a giveaway
			return types.LotteryOutcome{Resolved: true, IsLottery: false}, false, ""
		}
		return types.LotteryOutcome{
			Resolved:  true,
			IsLottery: true,
			Status:    types.LotteryStatus(*data.Status),
		}, false, ""
	}

	if lotteryNotApplicableCodes[envelope.Code] {
		return types.LotteryOutcome{Resolved: true, IsLottery: false}, false, ""
	}

	return types.LotteryOutcome{}, true, types.LotteryErrProtocol
}
