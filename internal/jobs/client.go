package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// GraphQLClient posts operations to the CRM endpoint, the same way any
// external client would.
type GraphQLClient struct {
	url  string
	http *http.Client
}

func NewGraphQLClient(url string, timeout time.Duration) *GraphQLClient {
	return &GraphQLClient{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Do executes query and decodes the data member into out. Any entry in the
// errors array fails the call.
func (c *GraphQLClient) Do(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": vars,
	})
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "post graphql")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("graphql endpoint returned %s", resp.Status)
	}

	var res graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return errors.Wrap(err, "decode response")
	}
	if len(res.Errors) > 0 {
		msgs := make([]string, 0, len(res.Errors))
		for _, e := range res.Errors {
			msgs = append(msgs, e.Message)
		}
		return errors.Errorf("graphql: %s", strings.Join(msgs, "; "))
	}

	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(res.Data, out), "decode data")
}
