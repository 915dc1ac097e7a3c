package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/b2b-portal/logger"
	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

func newTestB2BClient(t *testing.T, handler fasthttp.RequestHandler) *B2BClient {
	t.Helper()

	u := startUpstream(t, handler)
	b := NewB2BClient(context.Background(), logger.NewNop(), &types.UpstreamConfig{
		BaseURL:     "http://upstream.test",
		GraphQLPath: "/graphql",
	}, WithDial(u.dial), WithBackoff(time.Millisecond))
	t.Cleanup(b.Close)

	return b
}

func TestB2BGetUnwrapsEnvelope(t *testing.T) {
	b := newTestB2BClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"code":200,"data":{"id":7,"companyName":"Acme"},"meta":{"message":"SUCCESS"}}`)
	})

	rec, err := b.Get(context.Background(), "/api/v3/io/companies/7", nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme", rec["companyName"])
	assert.Equal(t, float64(7), rec["id"])
}

func TestB2BGetKeepsPlainObjects(t *testing.T) {
	b := newTestB2BClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"id":"u1","data":{"nested":true}}`)
	})

	rec, err := b.Get(context.Background(), "/users/u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "u1", rec["id"])
}

func TestB2BList(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"id":1},{"id":2}]`, 2},
		{"data envelope", `{"code":200,"data":[{"id":1}]}`, 1},
		{"paginated envelope", `{"data":{"list":[{"id":1},{"id":2},{"id":3}],"pagination":{"totalCount":3}}}`, 3},
		{"empty object", `{}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestB2BClient(t, func(ctx *fasthttp.RequestCtx) {
				ctx.SetBodyString(tt.body)
			})

			records, err := b.List(context.Background(), "/list", nil)
			require.NoError(t, err)
			assert.NotNil(t, records)
			assert.Len(t, records, tt.want)
		})
	}
}

func TestB2BStatusError(t *testing.T) {
	b := newTestB2BClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString(`{"message":"order not found"}`)
	})

	_, err := b.Get(context.Background(), "/orders/9", nil)
	require.Error(t, err)
	assert.True(t, types.IsError(err, types.ErrUpstreamStatus))
	assert.Equal(t, fasthttp.StatusNotFound, StatusCode(err))
	assert.Contains(t, err.Error(), "order not found")
}

func TestB2BInvalidJSON(t *testing.T) {
	b := newTestB2BClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{not json`)
	})

	_, err := b.Get(context.Background(), "/broken", nil)
	assert.True(t, types.IsError(err, types.ErrClientResponseInvalid))
}

func TestB2BPutSendsBody(t *testing.T) {
	var method string
	var received map[string]interface{}

	b := newTestB2BClient(t, func(ctx *fasthttp.RequestCtx) {
		method = string(ctx.Method())
		_ = utils.Unmarshal(ctx.PostBody(), &received)
		ctx.SetBodyString(`{"data":{"orderId":"5","poNumber":"PO-2"},"code":200}`)
	})

	rec, err := b.Put(context.Background(), "/orders/5", map[string]interface{}{"poNumber": "PO-2"})
	require.NoError(t, err)
	assert.Equal(t, "PUT", method)
	assert.Equal(t, "PO-2", received["poNumber"])
	assert.Equal(t, "5", rec["orderId"])
}

func TestB2BGraphQL(t *testing.T) {
	var received graphQLRequest

	b := newTestB2BClient(t, func(ctx *fasthttp.RequestCtx) {
		_ = utils.Unmarshal(ctx.PostBody(), &received)
		ctx.SetBodyString(`{"data":{"quotes":{"edges":[{"node":{"id":"q1"}}]}}}`)
	})

	data, err := b.GraphQL(context.Background(), "query { quotes { edges { node { id } } } }", map[string]interface{}{"first": 10})
	require.NoError(t, err)
	assert.Contains(t, received.Query, "quotes")
	assert.Equal(t, float64(10), received.Variables["first"])
	assert.Contains(t, data, "quotes")
}

func TestB2BGraphQLErrors(t *testing.T) {
	b := newTestB2BClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"data":null,"errors":[{"message":"not authorized"},{"message":"bad field"}]}`)
	})

	_, err := b.GraphQL(context.Background(), "query { x }", nil)
	require.Error(t, err)
	assert.True(t, types.IsError(err, types.ErrGraphQL))
	assert.Contains(t, err.Error(), "not authorized; bad field")
}
