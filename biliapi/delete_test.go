package biliapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dynsweep/bili-dynamic-cleaner/config"
	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forwardTestItem(id string) *types.DynamicItem {
	return &types.DynamicItem{IDStr: id, Type: types.TypeForward}
}

func TestDeleteDynamicSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "csrf-token", r.URL.Query().Get("csrf"))
		assert.Equal(t, "web", r.URL.Query().Get("platform"))

		var payload deleteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "111", payload.DynIDStr)
		assert.Equal(t, 1, payload.DynType)

		w.Write([]byte(`{"code":0}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	outcome := client.DeleteDynamic(context.Background(), forwardTestItem("111"))

	assert.Equal(t, types.DeleteSucceeded, outcome.Status)
	assert.Equal(t, 1, outcome.Attempts)
	assert.True(t, outcome.Deleted())
}

func TestDeleteDynamicAlreadyGoneIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":-404,"message":"dynamic not exist"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	outcome := client.DeleteDynamic(context.Background(), forwardTestItem("111"))

	assert.Equal(t, types.DeleteAlreadyGone, outcome.Status)
	assert.Equal(t, 1, outcome.Attempts)
	assert.True(t, outcome.Deleted())
}

func TestDeleteDynamicAuthInvalidNeverRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"code":-403,"message":"csrf check failed"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	outcome := client.DeleteDynamic(context.Background(), forwardTestItem("111"))

	assert.Equal(t, types.DeleteAuthInvalid, outcome.Status)
	assert.Equal(t, 1, calls)
	assert.False(t, outcome.Deleted())
}

func TestDeleteDynamicRetriesAfterRateLimit(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{"code":4128002,"message":"operating too frequently"}`))
			return
		}
		w.Write([]byte(`{"code":0}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	outcome := client.DeleteDynamic(context.Background(), forwardTestItem("111"))

	assert.Equal(t, types.DeleteSucceeded, outcome.Status)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, 2, calls)
}

func TestDeleteDynamicExhaustsAttempts(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"code":-500,"message":"server error"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	outcome := client.DeleteDynamic(context.Background(), forwardTestItem("111"))

	assert.Equal(t, types.DeleteFailed, outcome.Status)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Contains(t, outcome.Message, "-500")
}

func TestDeleteDynamicMissingIDFailsFast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an item without id")
	}))
	defer server.Close()

	client := newTestClient(t, server)
	outcome := client.DeleteDynamic(context.Background(), forwardTestItem(""))

	assert.Equal(t, types.DeleteFailed, outcome.Status)
}

func TestDeleteDynamicTokenFailureIsAuthInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected when tokens cannot be derived")
	}))
	defer server.Close()

	client := newTestClient(t, server)
	client.tokens = func() (config.Credentials, error) {
		return config.Credentials{}, errors.New("credentials file missing")
	}

	outcome := client.DeleteDynamic(context.Background(), forwardTestItem("111"))

	assert.Equal(t, types.DeleteAuthInvalid, outcome.Status)
}

func TestDeleteTypeCodeMapping(t *testing.T) {
	assert.Equal(t, 1, types.DeleteTypeCode(types.TypeForward))
	assert.Equal(t, 8, types.DeleteTypeCode(types.TypeVideo))
	assert.Equal(t, 2, types.DeleteTypeCode(types.TypeDrawing))
	assert.Equal(t, 4, types.DeleteTypeCode(types.TypeText))
	assert.Equal(t, 64, types.DeleteTypeCode(types.TypeArticle))
	assert.Equal(t, 256, types.DeleteTypeCode(types.TypeMusic))
	assert.Equal(t, 2048, types.DeleteTypeCode(types.TypeLiveRcmd))
	// Unknown types fall back to the forward code
	assert.Equal(t, 1, types.DeleteTypeCode("DYNAMIC_TYPE_SOMETHING_NEW"))
}
