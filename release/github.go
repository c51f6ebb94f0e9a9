package release

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/releaseflow/internal/tlsutil"
	"github.com/BaSui01/releaseflow/types"
)

const (
	defaultGitHubAPI  = "https://api.github.com"
	githubAPIVersion  = "2022-11-28"
	appJWTLifetime    = 9 * time.Minute
	tokenRefreshSlack = time.Minute
)

// GitHubOptions configures a GitHubHost. Either Token or the App fields
// must be set.
type GitHubOptions struct {
	APIURL string
	Owner  string
	Repo   string

	Token string

	AppID          string
	InstallationID int64
	PrivateKeyPEM  []byte

	// CACertPEM is trusted in addition to the system roots.
	CACertPEM []byte

	// RequestsPerSecond paces API calls; zero disables pacing.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// tokenSource yields the bearer token for API calls.
type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

type staticToken string

func (t staticToken) Token(context.Context) (string, error) { return string(t), nil }

// RequestObserver is told about every API request; status is 0 when no
// response arrived.
type RequestObserver func(method string, status int, d time.Duration)

// GitHubHost implements ReleaseHost against the GitHub REST API.
type GitHubHost struct {
	api      string
	owner    string
	repo     string
	client   *http.Client
	limiter  *rate.Limiter
	tokens   tokenSource
	observer RequestObserver
	logger   *zap.Logger
}

// NewGitHubHost creates a GitHub release host.
func NewGitHubHost(opts GitHubOptions, logger *zap.Logger) (*GitHubHost, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Owner == "" || opts.Repo == "" {
		return nil, types.Invalid("github owner and repo are required")
	}

	api := strings.TrimRight(opts.APIURL, "/")
	if api == "" {
		api = defaultGitHubAPI
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client, err := tlsutil.HTTPClient(timeout, opts.CACertPEM)
	if err != nil {
		return nil, types.Invalid("github ca bundle").WithCause(err)
	}

	h := &GitHubHost{
		api:    api,
		owner:  opts.Owner,
		repo:   opts.Repo,
		client: client,
		logger: logger.With(zap.String("component", "github_host")),
	}
	if opts.RequestsPerSecond > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	switch {
	case opts.Token != "":
		h.tokens = staticToken(opts.Token)
	case opts.AppID != "" && opts.InstallationID != 0 && len(opts.PrivateKeyPEM) > 0:
		src, err := newAppTokenSource(h, opts.AppID, opts.InstallationID, opts.PrivateKeyPEM)
		if err != nil {
			return nil, err
		}
		h.tokens = src
	default:
		return nil, types.Invalid("github token or app credentials are required")
	}
	return h, nil
}

// WithHTTPClient replaces the HTTP client.
func (h *GitHubHost) WithHTTPClient(c *http.Client) *GitHubHost {
	if c != nil {
		h.client = c
	}
	return h
}

// WithRequestObserver registers a callback for API request outcomes.
func (h *GitHubHost) WithRequestObserver(o RequestObserver) *GitHubHost {
	h.observer = o
	return h
}

func (h *GitHubHost) observe(method string, status int, start time.Time) {
	if h.observer != nil {
		h.observer(method, status, time.Since(start))
	}
}

// CreateRelease creates a release for an existing tag.
func (h *GitHubHost) CreateRelease(ctx context.Context, req ReleaseRequest) (*ReleaseInfo, error) {
	payload := map[string]any{
		"tag_name":   req.TagName,
		"name":       req.Name,
		"body":       req.Body,
		"draft":      req.Draft,
		"prerelease": req.Prerelease,
	}
	url := fmt.Sprintf("%s/repos/%s/%s/releases", h.api, h.owner, h.repo)

	h.logger.Info("creating github release", zap.String("tag", req.TagName))
	body, err := h.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, err
	}

	var info ReleaseInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, types.Unexpected("decode release response").WithCause(err)
	}
	return &info, nil
}

// DeleteRelease deletes a release by id.
func (h *GitHubHost) DeleteRelease(ctx context.Context, id int64) error {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/%d", h.api, h.owner, h.repo, id)
	h.logger.Info("deleting github release", zap.Int64("release_id", id))
	_, err := h.do(ctx, http.MethodDelete, url, nil)
	return err
}

// do sends one API request and maps the status to the error taxonomy.
func (h *GitHubHost) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, types.Unexpected("encode request").WithCause(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, types.Invalid("build request %s %s", method, url).WithCause(err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := h.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.observe(method, 0, start)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.Failed("%s %s", method, url).WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()
	h.observe(method, resp.StatusCode, start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.Failed("read response of %s %s", method, url).WithCause(err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, statusError(method, url, resp.StatusCode, body)
}

func statusError(method, url string, status int, body []byte) error {
	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusNotFound:
		return types.NotFound("%s %s: %s", method, url, msg)
	case status == http.StatusUnprocessableEntity || status == http.StatusConflict:
		return types.Conflict("%s %s: %s", method, url, msg)
	case status == http.StatusTooManyRequests || status >= 500:
		return types.Failed("%s %s: %d %s", method, url, status, msg).WithRetryable(true)
	default:
		return types.Failed("%s %s: %d %s", method, url, status, msg)
	}
}

// appTokenSource exchanges a GitHub App JWT for an installation token and
// caches it until shortly before expiry.
type appTokenSource struct {
	host           *GitHubHost
	appID          string
	installationID int64
	signer         jwt.SigningMethod
	key            any
	now            func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newAppTokenSource(h *GitHubHost, appID string, installationID int64, pemKey []byte) (*appTokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, types.Invalid("parse github app private key").WithCause(err)
	}
	return &appTokenSource{
		host:           h,
		appID:          appID,
		installationID: installationID,
		signer:         jwt.SigningMethodRS256,
		key:            key,
		now:            time.Now,
	}, nil
}

// appJWT signs the short-lived token that authenticates as the app itself.
func (s *appTokenSource) appJWT() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}
	signed, err := jwt.NewWithClaims(s.signer, claims).SignedString(s.key)
	if err != nil {
		return "", types.Unexpected("sign github app jwt").WithCause(err)
	}
	return signed, nil
}

func (s *appTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expires.Add(-tokenRefreshSlack)) {
		return s.token, nil
	}

	appToken, err := s.appJWT()
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", s.host.api, s.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", types.Invalid("build installation token request").WithCause(err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	req.Header.Set("Authorization", "Bearer "+appToken)

	resp, err := s.host.client.Do(req)
	if err != nil {
		return "", types.Failed("request installation token").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.Failed("read installation token").WithCause(err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", statusError(http.MethodPost, url, resp.StatusCode, body)
	}

	res := gjson.ParseBytes(body)
	s.token = res.Get("token").String()
	if s.token == "" {
		return "", types.Unexpected("installation token response has no token")
	}
	s.expires = res.Get("expires_at").Time()
	s.host.logger.Debug("installation token refreshed", zap.Time("expires_at", s.expires))
	return s.token, nil
}

// NoopHost is a ReleaseHost that only logs. It is used when no hosting
// service is configured.
type NoopHost struct {
	logger *zap.Logger
}

// NewNoopHost creates a NoopHost.
func NewNoopHost(logger *zap.Logger) *NoopHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopHost{logger: logger.With(zap.String("component", "noop_host"))}
}

// CreateRelease logs the request and returns an empty release.
func (n *NoopHost) CreateRelease(_ context.Context, req ReleaseRequest) (*ReleaseInfo, error) {
	n.logger.Info("no release host configured, skipping release creation", zap.String("tag", req.TagName))
	return &ReleaseInfo{}, nil
}

// DeleteRelease logs the request.
func (n *NoopHost) DeleteRelease(_ context.Context, id int64) error {
	n.logger.Info("no release host configured, nothing to delete", zap.Int64("release_id", id))
	return nil
}
