package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/normalize"
	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

const defaultGraphQLPath = "/graphql"

// StatusError is a non-2xx upstream response. It matches types.ErrUpstreamStatus.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := "upstream returned HTTP " + strconv.Itoa(e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Is(target error) bool {
	return target == types.ErrUpstreamStatus
}

// StatusCode extracts the upstream status from err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// B2BClient speaks the B2B commerce REST and GraphQL APIs and hands back
// loosely typed records for the normalizers.
type B2BClient struct {
	http        *HTTPClient
	logger      types.Logger
	graphqlPath string
}

func NewB2BClient(ctx context.Context, logger types.Logger, config *types.UpstreamConfig, opts ...Option) *B2BClient {
	graphqlPath := config.GraphQLPath
	if graphqlPath == "" {
		graphqlPath = defaultGraphQLPath
	}

	return &B2BClient{
		http:        NewHTTPClient(ctx, logger, "b2b-upstream", config, opts...),
		logger:      logger,
		graphqlPath: graphqlPath,
	}
}

// Get unwraps the {code, data, meta} envelope when present.
func (b *B2BClient) Get(ctx context.Context, path string, query url.Values) (normalize.Record, error) {
	payload, err := b.do(ctx, "GET", path, query, nil)
	if err != nil {
		return nil, err
	}

	return unwrapRecord(payload), nil
}

// List accepts bare arrays, {data: [...]} envelopes and {data: {list: [...]}}.
func (b *B2BClient) List(ctx context.Context, path string, query url.Values) ([]normalize.Record, error) {
	payload, err := b.do(ctx, "GET", path, query, nil)
	if err != nil {
		return nil, err
	}

	records := normalize.Nodes(payload)
	if records == nil {
		records = []normalize.Record{}
	}

	return records, nil
}

func (b *B2BClient) Put(ctx context.Context, path string, body interface{}) (normalize.Record, error) {
	return b.write(ctx, "PUT", path, body)
}

func (b *B2BClient) Post(ctx context.Context, path string, body interface{}) (normalize.Record, error) {
	return b.write(ctx, "POST", path, body)
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQL returns the response's data object. A non-empty errors array
// yields types.ErrGraphQL with the joined messages.
func (b *B2BClient) GraphQL(ctx context.Context, query string, variables map[string]interface{}) (normalize.Record, error) {
	body, err := utils.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal graphql request")
	}

	payload, err := b.do(ctx, "POST", b.graphqlPath, nil, body)
	if err != nil {
		return nil, err
	}

	response, ok := payload.(map[string]interface{})
	if !ok {
		return nil, errors.WithStack(types.Errorf(types.ErrClientResponseInvalid, "graphql response is not an object"))
	}

	if messages := graphQLErrors(response["errors"]); len(messages) > 0 {
		return nil, errors.WithStack(types.Errorf(types.ErrGraphQL, "%s", strings.Join(messages, "; ")))
	}

	data, _ := response["data"].(map[string]interface{})
	if data == nil {
		data = normalize.Record{}
	}

	return data, nil
}

// Ping issues a GET and only checks the status.
func (b *B2BClient) Ping(ctx context.Context, path string) error {
	_, err := b.do(ctx, "GET", path, nil, nil)
	return err
}

func (b *B2BClient) BreakerState() string {
	return b.http.BreakerState()
}

func (b *B2BClient) Close() {
	b.http.Close()
}

func (b *B2BClient) write(ctx context.Context, method, path string, body interface{}) (normalize.Record, error) {
	encoded, err := utils.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request body")
	}

	payload, err := b.do(ctx, method, path, nil, encoded)
	if err != nil {
		return nil, err
	}

	return unwrapRecord(payload), nil
}

func (b *B2BClient) do(ctx context.Context, method, path string, query url.Values, body []byte) (interface{}, error) {
	data, status, err := b.http.Call(ctx, method, path, query, body, nil)
	if err != nil {
		b.logger.Warn("Upstream call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Error(err))
		if status > 0 {
			return nil, errors.WithStack(&StatusError{StatusCode: status})
		}
		return nil, errors.WithStack(err)
	}

	if status < 200 || status >= 300 {
		return nil, errors.WithStack(&StatusError{StatusCode: status, Body: truncate(string(data), 256)})
	}

	if len(data) == 0 {
		return normalize.Record{}, nil
	}

	var payload interface{}
	if err := utils.Unmarshal(data, &payload); err != nil {
		return nil, errors.WithStack(types.Errorf(types.ErrClientResponseInvalid, "%s %s: %v", method, path, err))
	}

	return payload, nil
}

func unwrapRecord(payload interface{}) normalize.Record {
	rec, ok := payload.(map[string]interface{})
	if !ok {
		return normalize.Record{}
	}

	if data, ok := rec["data"].(map[string]interface{}); ok {
		if _, hasCode := rec["code"]; hasCode {
			return data
		}
		if _, hasMeta := rec["meta"]; hasMeta {
			return data
		}
	}

	return rec
}

func graphQLErrors(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}

	messages := make([]string, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if msg := normalize.Str(entry["message"]); msg != "" {
			messages = append(messages, msg)
		}
	}

	if len(messages) == 0 && len(list) > 0 {
		messages = append(messages, "unknown graphql error")
	}

	return messages
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
