package biliapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dynsweep/bili-dynamic-cleaner/monitoring"
)

// Unfollow removes the current user's follow relation to the given author.
// The session token is re-derived for the call. Unlike deletions this is not
// retried here: the sweep runs strictly sequentially under a tighter
// per-action rate limit and moves on, keeping failed entries in its failure
// list instead.
func (c *Client) Unfollow(ctx context.Context, mid int64) error {
	ctx, span := monitoring.CreateSpan(ctx, "biliapi.Unfollow")
	defer span.End()
	monitoring.SetSpanAttributes(span, map[string]interface{}{"mid": mid})

	creds, err := c.tokens()
	if err != nil {
		monitoring.RecordUnfollow("auth_error")
		return &APIError{Kind: KindAuth, Message: err.Error()}
	}

	form := url.Values{
		"fid":    {strconv.FormatInt(mid, 10)},
		"act":    {"2"},
		"re_src": {"11"},
		"csrf":   {creds.CSRFToken},
	}

	unfollowURL := c.cfg.APIBaseURL + "/x/relation/modify"
	envelope, err := c.postForm(ctx, "unfollow", unfollowURL, form.Encode(), c.cfg.UnfollowTimeout)
	if err != nil {
		monitoring.RecordUnfollow("transport_error")
		monitoring.SetSpanError(span, err)
		return err
	}

	switch envelope.Code {
	case 0:
		monitoring.RecordUnfollow("succeeded")
		return nil
	case deleteAuthInvalidCode:
		monitoring.RecordUnfollow("auth_invalid")
		return &APIError{Kind: KindAuth, Code: envelope.Code, Message: envelope.Message}
	default:
		monitoring.RecordUnfollow("failed")
		return &APIError{Kind: KindProtocol, Code: envelope.Code, Message: fmt.Sprintf("unfollow rejected: %s", envelope.Message)}
	}
}
