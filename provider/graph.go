package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/config"
	"github.com/tnqbao/gau-ads-orchestrator/guard"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

var tracer = otel.Tracer("github.com/tnqbao/gau-ads-orchestrator/provider")

// GraphClient talks to the Meta Marketing API. Every call goes through the
// "Facebook API" breaker and the per ad account rate tracker.
type GraphClient struct {
	baseURL         string
	version         string
	appSecret       string
	httpClient      *http.Client
	breaker         *guard.Breaker
	rate            *guard.RateTracker
	logger          *infra.LoggerClient
	callTimeout     time.Duration
	simpleThreshold int64
	chunkSize       int64
}

func NewGraphClient(cfg *config.EnvConfig, breakers *guard.Breakers, rate *guard.RateTracker, logger *infra.LoggerClient) *GraphClient {
	if cfg.Facebook.GraphBaseURL == "" {
		panic("Facebook Graph URL is not configured")
	}

	return &GraphClient{
		baseURL:         cfg.Facebook.GraphBaseURL,
		version:         cfg.Facebook.APIVersion,
		appSecret:       cfg.Facebook.AppSecret,
		httpClient:      &http.Client{},
		breaker:         breakers.Get(guard.FacebookAPI),
		rate:            rate,
		logger:          logger,
		callTimeout:     cfg.Duplication.BatchTimeout,
		simpleThreshold: cfg.Upload.VideoSimpleThreshold,
		chunkSize:       cfg.Upload.VideoChunkSize,
	}
}

// request describes one Graph API call. Exactly one of form or multipart is used.
type request struct {
	op        string
	method    string
	path      string
	accountID string
	token     string
	query     url.Values
	form      url.Values
	multipart func(w *multipart.Writer) error
	timeout   time.Duration
}

func (g *GraphClient) endpoint(path string) string {
	path = strings.TrimPrefix(path, "/")
	if g.version == "" {
		return g.baseURL + "/" + path
	}
	return g.baseURL + "/" + g.version + "/" + path
}

// do performs the call and decodes the JSON body into out (which may be nil).
func (g *GraphClient) do(ctx context.Context, req request, out any) error {
	ctx, span := tracer.Start(ctx, "graph."+req.op)
	span.SetAttributes(
		attribute.String("graph.method", req.method),
		attribute.String("graph.path", req.path),
		attribute.String("graph.ad_account", req.accountID),
	)
	defer span.End()

	if err := g.rate.Wait(ctx, req.accountID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	raw, err := guard.Execute(ctx, g.breaker, func(ctx context.Context) ([]byte, error) {
		return g.roundTrip(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.WarningWithContextf(ctx, "[Graph] %s %s failed: %v", req.method, req.path, err)
		return err
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := decodeJSON(raw, out); err != nil {
		return &apperr.RemoteUploadError{
			Service:    guard.FacebookAPI,
			Operation:  req.op,
			StatusCode: http.StatusOK,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}

func (g *GraphClient) roundTrip(ctx context.Context, req request) ([]byte, error) {
	timeout := req.timeout
	if timeout <= 0 {
		timeout = g.callTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	query := url.Values{}
	for k, v := range req.query {
		query[k] = v
	}
	auth := url.Values{}
	if req.token != "" {
		auth.Set("access_token", req.token)
		if proof := utils.AppSecretProof(g.appSecret, req.token); proof != "" {
			auth.Set("appsecret_proof", proof)
		}
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.multipart != nil:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for k := range auth {
			if err := w.WriteField(k, auth.Get(k)); err != nil {
				return nil, fmt.Errorf("failed to write %s field: %w", k, err)
			}
		}
		if err := req.multipart(w); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close multipart writer: %w", err)
		}
		body = &buf
		contentType = w.FormDataContentType()
	case req.method == http.MethodGet || req.method == http.MethodDelete:
		for k := range auth {
			query.Set(k, auth.Get(k))
		}
	default:
		form := url.Values{}
		for k, v := range req.form {
			form[k] = v
		}
		for k := range auth {
			form.Set(k, auth.Get(k))
		}
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	target := g.endpoint(req.path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &apperr.RemoteUploadError{
			Service:   guard.FacebookAPI,
			Operation: req.op,
			Err:       err,
		}
	}
	defer resp.Body.Close()

	g.rate.Observe(req.accountID, resp.Header)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.RemoteUploadError{
			Service:    guard.FacebookAPI,
			Operation:  req.op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read response: %w", err),
		}
	}

	if graphErr, ok := parseGraphError(raw); ok || resp.StatusCode >= http.StatusBadRequest {
		remoteErr := &apperr.RemoteUploadError{
			Service:    guard.FacebookAPI,
			Operation:  req.op,
			StatusCode: resp.StatusCode,
			Payload:    graphErr,
		}
		if !ok {
			remoteErr.Err = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(raw), 256))
		}
		if remoteErr.IsRateLimited() {
			g.rate.Pause(req.accountID, time.Minute)
		}
		return nil, remoteErr
	}

	return raw, nil
}

type graphErrorEnvelope struct {
	Error *apperr.GraphError `json:"error"`
}

func parseGraphError(raw []byte) (apperr.GraphError, bool) {
	if len(raw) == 0 || raw[0] != '{' {
		return apperr.GraphError{}, false
	}
	var env graphErrorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Error == nil {
		return apperr.GraphError{}, false
	}
	return *env.Error, true
}

func decodeJSON(raw []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// AccountPath turns "123" or "act_123" into "act_123".
func AccountPath(adAccountID string) string {
	if strings.HasPrefix(adAccountID, "act_") {
		return adAccountID
	}
	return "act_" + adAccountID
}
