package fhirclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/i474232898/growth-observations/internal/common"
	"github.com/i474232898/growth-observations/internal/growth"
)

// ObservationClient implements the growth.ObservationSource interface for a FHIR API.
type ObservationClient struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// DefaultBackoff is the retry policy used when none is configured.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// NewObservationClient creates a client for the FHIR API at baseURL.
func NewObservationClient(client *http.Client, baseURL string, backoff BackoffConfig) *ObservationClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         "fhir-observations",
		MaxRequests:  5,
		Interval:     1 * time.Minute,
		Timeout:      2 * time.Minute,
		IsSuccessful: countsAsSuccess,
	})

	return &ObservationClient{
		name:    "fhir",
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
		},
		circuit: cb,
	}
}

// Name returns the source name.
func (c *ObservationClient) Name() string {
	return c.name
}

// SearchObservations performs GET <baseURL>/<query>. An empty body decodes to an empty bundle.
func (c *ObservationClient) SearchObservations(ctx context.Context, query string) (growth.Bundle, error) {
	if c.baseURL == "" {
		return growth.Bundle{}, fmt.Errorf("%w: fhir base url is not configured", ErrInvalidConfig)
	}

	requestID := uuid.NewString()
	u := c.baseURL + "/" + strings.TrimLeft(query, "/")

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/fhir+json, application/json")
		req.Header.Set("X-Request-ID", requestID)
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return growth.Bundle{}, err
	}
	defer resp.Body.Close()

	// Only explicitly non-JSON documents are refused; generic types such as text/plain are decoded.
	if ct := resp.Header.Get("Content-Type"); common.HasAny(ct, "html", "xml") {
		return growth.Bundle{}, fmt.Errorf("%w: content type %q", ErrMalformedPayload, ct)
	}

	var bundle growth.Bundle
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil && !errors.Is(err, io.EOF) {
		return growth.Bundle{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if n := len(bundle.Entries()); bundle.Total != nil && *bundle.Total > n {
		log.Printf("INFO: %s returned %d of %d observations (request %s); further pages are not fetched", query, n, *bundle.Total, requestID)
	}

	return bundle, nil
}
