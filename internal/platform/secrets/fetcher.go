package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultVersion  = "latest"
	metricNamespace = "github.com/marketloop/api/internal/platform/secrets"
)

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references using Google Secret Manager with in-process caching.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool

	logger        *zap.Logger
	defaultProjID string

	mu    sync.RWMutex
	cache map[string]cacheEntry

	latency        metric.Float64Histogram
	latencyEnabled bool
}

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

type fetcherConfig struct {
	logger        *zap.Logger
	defaultProjID string
	client        secretManagerClient
	clientOpts    []option.ClientOption
	meter         metric.Meter
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithDefaultProject configures the project ID used for references that omit one.
func WithDefaultProject(projectID string) Option {
	return func(cfg *fetcherConfig) {
		cfg.defaultProjID = strings.TrimSpace(projectID)
	}
}

// WithSecretManagerClient injects a preconfigured Secret Manager client (primarily for tests).
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) {
		cfg.client = client
	}
}

// WithClientOptions forwards Cloud client options when constructing the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// WithMeter injects a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(cfg *fetcherConfig) {
		cfg.meter = m
	}
}

// NewFetcher builds a Fetcher with secret caching and access latency metrics.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	fetcher := &Fetcher{
		client:        cfg.client,
		logger:        cfg.logger,
		defaultProjID: cfg.defaultProjID,
		cache:         make(map[string]cacheEntry),
	}

	if fetcher.client == nil {
		client, err := secretManagerClientFactory(ctx, cfg.clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("secrets: create secret manager client: %w", err)
		}
		fetcher.client = client
		fetcher.ownsClient = true
	}

	meter := cfg.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	if histogram, err := meter.Float64Histogram("secret_access_latency_ms"); err == nil {
		fetcher.latency = histogram
		fetcher.latencyEnabled = true
	} else {
		cfg.logger.Warn("secrets: latency metric unavailable", zap.Error(err))
	}

	return fetcher, nil
}

// Close releases resources held by the fetcher.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil || !f.ownsClient {
		return nil
	}
	return f.client.Close()
}

// ResolveSecret implements config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f.Resolve(ctx, ref)
}

// Resolve retrieves the secret value for the supplied reference, consulting the cache first.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	if f == nil || f.client == nil {
		return "", errors.New("secrets: fetcher not initialised")
	}

	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}

	key := parsed.cacheKey()
	if value, ok := f.lookupCache(key); ok {
		return value, nil
	}

	projectID := parsed.project
	if projectID == "" {
		projectID = f.defaultProjID
	}
	if projectID == "" {
		return "", fmt.Errorf("secrets: no project for reference %s", maskReference(ref))
	}

	start := time.Now()
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/%s", projectID, parsed.name, parsed.version),
	})
	f.recordLatency(ctx, time.Since(start), err)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", fmt.Errorf("secrets: secret %s not found: %w", maskReference(ref), err)
		}
		return "", fmt.Errorf("secrets: access %s: %w", maskReference(ref), err)
	}

	value := string(resp.GetPayload().GetData())
	f.storeCache(key, value)
	return value, nil
}

// Invalidate clears the cached value for the supplied reference.
func (f *Fetcher) Invalidate(ref string) {
	parsed, err := parseReference(ref)
	if err != nil {
		return
	}
	f.mu.Lock()
	delete(f.cache, parsed.cacheKey())
	f.mu.Unlock()
}

func (f *Fetcher) lookupCache(key string) (string, bool) {
	f.mu.RLock()
	entry, ok := f.cache[key]
	f.mu.RUnlock()
	if !ok {
		return "", false
	}
	return entry.value, true
}

func (f *Fetcher) storeCache(key, value string) {
	f.mu.Lock()
	f.cache[key] = cacheEntry{value: value, fetchedAt: time.Now().UTC()}
	f.mu.Unlock()
}

func (f *Fetcher) recordLatency(ctx context.Context, d time.Duration, err error) {
	if !f.latencyEnabled {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	f.latency.Record(ctx, float64(d.Milliseconds()),
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

type parsedReference struct {
	project string
	name    string
	version string
}

func (p parsedReference) cacheKey() string {
	return p.project + "/" + p.name + "@" + p.version
}

// parseReference accepts secret://[project/]name[?version=N] URIs.
func parseReference(ref string) (parsedReference, error) {
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(trimmed, "secret://") {
		return parsedReference{}, fmt.Errorf("secrets: unsupported reference %s", maskReference(ref))
	}

	parsedURL, err := url.Parse(trimmed)
	if err != nil {
		return parsedReference{}, fmt.Errorf("secrets: malformed reference %s: %w", maskReference(ref), err)
	}

	parsed := parsedReference{version: defaultVersion}
	path := strings.Trim(parsedURL.Path, "/")
	if parsedURL.Host != "" && path != "" {
		parsed.project = parsedURL.Host
		parsed.name = path
	} else if parsedURL.Host != "" {
		parsed.name = parsedURL.Host
	} else {
		parsed.name = path
	}
	if parsed.name == "" {
		return parsedReference{}, fmt.Errorf("secrets: reference %s missing secret name", maskReference(ref))
	}

	if version := strings.TrimSpace(parsedURL.Query().Get("version")); version != "" {
		parsed.version = version
	}

	return parsed, nil
}

func maskReference(ref string) string {
	trimmed := strings.TrimSpace(ref)
	if len(trimmed) <= 12 {
		return "secret://***"
	}
	return trimmed[:12] + "***"
}
