package middleware

import (
	"bytes"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

const (
	AlgorithmGzip       = "gzip"
	AlgorithmBrotli     = "br"
	DefaultLevel        = 6
	DefaultThreshold    = 1024
	MinCompressionRatio = 0.05
)

var defaultCompressibleTypes = []string{
	"application/json",
	"application/problem+json",
	"application/xml",
	"text/*",
}

type CompressionMiddleware struct {
	logger            types.Logger
	compressionConfig *CompressionConfig
	weight            int
	brotliWriterPool  sync.Pool
	bufferPool        sync.Pool
}

type CompressionConfig struct {
	Algorithm    string   `json:"algorithm"`
	Level        int      `json:"level"`
	Threshold    int      `json:"threshold"`
	AllowedTypes []string `json:"allowed_types"`
}

func NewCompressionMiddleware(config *types.MiddlewareItemConfig, logger types.Logger) *CompressionMiddleware {
	compressionConfig := &CompressionConfig{
		Algorithm: AlgorithmBrotli,
		Level:     DefaultLevel,
		Threshold: DefaultThreshold,
	}

	if config.Params != nil {
		if err := utils.UnmarshalConfig(config.Params, compressionConfig); err != nil {
			logger.Error("Failed to unmarshal Compression middleware config", zap.Error(err))
		}
	}

	if err := validateCompressionConfig(compressionConfig); err != nil {
		logger.Warn("Invalid compression config, using defaults", zap.Error(err))
		compressionConfig = &CompressionConfig{
			Algorithm: AlgorithmBrotli,
			Level:     DefaultLevel,
			Threshold: DefaultThreshold,
		}
	}

	if len(compressionConfig.AllowedTypes) == 0 {
		compressionConfig.AllowedTypes = defaultCompressibleTypes
	}

	cm := &CompressionMiddleware{
		logger:            logger,
		compressionConfig: compressionConfig,
		weight:            config.Weight,
	}

	cm.brotliWriterPool = sync.Pool{
		New: func() interface{} {
			return brotli.NewWriterLevel(nil, compressionConfig.Level)
		},
	}
	cm.bufferPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}

	return cm
}

func validateCompressionConfig(config *CompressionConfig) error {
	if config.Level < 1 || config.Level > 9 {
		return errors.Errorf("invalid compression level: %d (must be between 1 and 9)", config.Level)
	}

	if config.Threshold < 0 {
		return errors.Errorf("invalid threshold: %d (must be >= 0)", config.Threshold)
	}

	if config.Algorithm != AlgorithmGzip && config.Algorithm != AlgorithmBrotli {
		return errors.Errorf("unsupported algorithm: %s", config.Algorithm)
	}

	return nil
}

func (c *CompressionMiddleware) Name() string { return "compression" }
func (c *CompressionMiddleware) Weight() int  { return c.weight }

func (c *CompressionMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	next(ctx)

	algorithm := c.negotiate(ctx.Request.Header.Peek(fasthttp.HeaderAcceptEncoding))
	if algorithm == "" {
		return
	}

	if len(ctx.Response.Header.Peek(fasthttp.HeaderContentEncoding)) > 0 {
		return
	}

	if !c.shouldCompress(ctx.Response.Header.ContentType()) {
		return
	}

	body := ctx.Response.Body()
	if len(body) < c.compressionConfig.Threshold {
		return
	}

	compressed, err := c.compress(algorithm, body)
	if err != nil {
		c.logger.Warn("Response compression failed", zap.String("algorithm", algorithm), zap.Error(err))
		return
	}

	if 1.0-float64(len(compressed))/float64(len(body)) < MinCompressionRatio {
		return
	}

	ctx.Response.SetBody(compressed)
	ctx.Response.Header.SetContentEncoding(algorithm)
	addVary(ctx, fasthttp.HeaderAcceptEncoding)
}

// negotiate prefers the configured algorithm and falls back to the other
// supported one when the client only accepts that.
func (c *CompressionMiddleware) negotiate(acceptEncoding []byte) string {
	if len(acceptEncoding) == 0 {
		return ""
	}

	accepted := make(map[string]bool, 4)
	for _, part := range strings.Split(string(acceptEncoding), ",") {
		token, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.ReplaceAll(strings.TrimSpace(params), " ", "") == "q=0" {
			continue
		}
		accepted[strings.ToLower(strings.TrimSpace(token))] = true
	}

	preferred := c.compressionConfig.Algorithm
	if accepted[preferred] {
		return preferred
	}

	for _, algorithm := range []string{AlgorithmBrotli, AlgorithmGzip} {
		if accepted[algorithm] {
			return algorithm
		}
	}

	return ""
}

func (c *CompressionMiddleware) shouldCompress(contentType []byte) bool {
	if len(contentType) == 0 {
		return false
	}

	ctStr := string(contentType)
	if semicolon := strings.Index(ctStr, ";"); semicolon != -1 {
		ctStr = ctStr[:semicolon]
	}
	ctStr = strings.TrimSpace(strings.ToLower(ctStr))

	for _, allowedType := range c.compressionConfig.AllowedTypes {
		if allowedType == ctStr {
			return true
		}
		if strings.HasSuffix(allowedType, "*") && strings.HasPrefix(ctStr, strings.TrimSuffix(allowedType, "*")) {
			return true
		}
	}

	return false
}

func (c *CompressionMiddleware) compress(algorithm string, body []byte) ([]byte, error) {
	if algorithm == AlgorithmGzip {
		return fasthttp.AppendGzipBytesLevel(nil, body, c.compressionConfig.Level), nil
	}

	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	writer := c.brotliWriterPool.Get().(*brotli.Writer)
	writer.Reset(buf)
	defer func() {
		writer.Reset(nil)
		c.brotliWriterPool.Put(writer)
	}()

	if _, err := writer.Write(body); err != nil {
		return nil, errors.Wrap(err, "brotli write")
	}

	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "brotli close")
	}

	return append([]byte(nil), buf.Bytes()...), nil
}

func addVary(ctx *fasthttp.RequestCtx, value string) {
	existing := string(ctx.Response.Header.Peek(fasthttp.HeaderVary))
	if existing == "" {
		ctx.Response.Header.Set(fasthttp.HeaderVary, value)
		return
	}

	for _, part := range strings.Split(existing, ",") {
		if strings.EqualFold(strings.TrimSpace(part), value) {
			return
		}
	}

	ctx.Response.Header.Set(fasthttp.HeaderVary, existing+", "+value)
}
