package biliapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/dynsweep/bili-dynamic-cleaner/monitoring"
	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/sirupsen/logrus"
)

// feedRateLimitCode is the envelope code the feed endpoint returns when the
// caller is paginating too fast
const feedRateLimitCode = -352

// feedData is the payload of a feed page response
type feedData struct {
	Items  []types.DynamicItem `json:"items"`
	Offset string              `json:"offset"`
}

// FetchFeedPage fetches one page of the subject user's feed. Rate-limit
// responses are surfaced as an APIError with kind rate_limit and are never
// retried here; the page-level retry policy belongs to the caller. An empty
// item list signals the end of the feed and must not be retried either.
func (c *Client) FetchFeedPage(ctx context.Context, hostMID, offset string) (*types.PageResult, error) {
	ctx, span := monitoring.CreateSpan(ctx, "biliapi.FetchFeedPage")
	defer span.End()
	monitoring.SetSpanAttributes(span, map[string]interface{}{
		"host_mid": hostMID,
		"offset":   offset,
	})

	feedURL := fmt.Sprintf("%s/x/polymer/web-dynamic/v1/feed/space?offset=%s&host_mid=%s",
		c.cfg.APIBaseURL, url.QueryEscape(offset), url.QueryEscape(hostMID))

	envelope, err := c.get(ctx, "feed", feedURL, c.cfg.FeedTimeout)
	if err != nil {
		monitoring.SetSpanError(span, err)
		return nil, err
	}

	switch {
	case envelope.Code == 0:
		var data feedData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, &APIError{Kind: KindProtocol, Message: fmt.Sprintf("malformed feed payload: %v", err)}
		}
		c.logger.WithFields(logrus.Fields{
			"offset":      offset,
			"item_count":  len(data.Items),
			"next_offset": data.Offset,
		}).Debug("Fetched feed page")
		return &types.PageResult{Items: data.Items, NextOffset: data.Offset}, nil
	case envelope.Code == feedRateLimitCode:
		err := &APIError{Kind: KindRateLimit, Code: envelope.Code, Message: envelope.Message}
		monitoring.SetSpanError(span, err)
		return nil, err
	default:
		err := &APIError{Kind: KindProtocol, Code: envelope.Code, Message: envelope.Message}
		monitoring.SetSpanError(span, err)
		return nil, err
	}
}
