package middleware

import (
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

// CORSMiddleware lets the buyer portal UI call the proxy from another origin.
type CORSMiddleware struct {
	logger            types.Logger
	corsConfig        *CORSConfig
	weight            int
	allowsAll         bool
	allowedOriginsMap map[string]bool
	wildcardDomains   []string
	allowedMethods    string
	allowedHeaders    string
	exposedHeaders    string
	maxAge            string
}

type CORSConfig struct {
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

func NewCORSMiddleware(config *types.MiddlewareItemConfig, logger types.Logger) *CORSMiddleware {
	var corsConfig = &CORSConfig{
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           86400,
	}

	if config.Params != nil {
		err := utils.UnmarshalConfig(config.Params, corsConfig)
		if err != nil {
			logger.Error("Failed to unmarshal CORS middleware config", zap.Error(err))
		}
	}

	cm := &CORSMiddleware{
		logger:     logger,
		corsConfig: corsConfig,
		weight:     config.Weight,
	}

	cm.compile()

	return cm
}

func (c *CORSMiddleware) Name() string { return "cors" }
func (c *CORSMiddleware) Weight() int  { return c.weight }

func (c *CORSMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	origin := string(ctx.Request.Header.Peek(fasthttp.HeaderOrigin))
	if origin == "" {
		next(ctx)
		return
	}

	if !c.isOriginAllowed(origin) {
		c.logger.Warn("CORS request blocked",
			zap.String("origin", origin),
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()))

		utils.WriteError(ctx, fasthttp.StatusForbidden, "origin not allowed")
		return
	}

	if ctx.IsOptions() && len(ctx.Request.Header.Peek(fasthttp.HeaderAccessControlRequestMethod)) > 0 {
		c.writePreflight(ctx, origin)
		return
	}

	next(ctx)

	c.setAllowOrigin(ctx, origin)
	if c.exposedHeaders != "" {
		ctx.Response.Header.Set(fasthttp.HeaderAccessControlExposeHeaders, c.exposedHeaders)
	}
}

func (c *CORSMiddleware) isOriginAllowed(origin string) bool {
	if c.allowsAll || c.allowedOriginsMap[origin] {
		return true
	}

	host := origin
	if _, rest, found := strings.Cut(origin, "://"); found {
		host = rest
	}

	for _, domain := range c.wildcardDomains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}

	return false
}

func (c *CORSMiddleware) setAllowOrigin(ctx *fasthttp.RequestCtx, origin string) {
	if c.allowsAll && !c.corsConfig.AllowCredentials {
		ctx.Response.Header.Set(fasthttp.HeaderAccessControlAllowOrigin, "*")
	} else {
		ctx.Response.Header.Set(fasthttp.HeaderAccessControlAllowOrigin, origin)
		addVary(ctx, fasthttp.HeaderOrigin)
	}

	if c.corsConfig.AllowCredentials {
		ctx.Response.Header.Set(fasthttp.HeaderAccessControlAllowCredentials, "true")
	}
}

func (c *CORSMiddleware) writePreflight(ctx *fasthttp.RequestCtx, origin string) {
	ctx.SetStatusCode(fasthttp.StatusNoContent)
	ctx.SetBody(nil)

	c.setAllowOrigin(ctx, origin)
	ctx.Response.Header.Set(fasthttp.HeaderAccessControlAllowMethods, c.allowedMethods)
	ctx.Response.Header.Set(fasthttp.HeaderAccessControlAllowHeaders, c.allowedHeaders)
	ctx.Response.Header.Set(fasthttp.HeaderAccessControlMaxAge, c.maxAge)
}

func (c *CORSMiddleware) compile() {
	c.allowedOriginsMap = make(map[string]bool, len(c.corsConfig.AllowedOrigins))

	for _, origin := range c.corsConfig.AllowedOrigins {
		switch {
		case origin == "*":
			c.allowsAll = true
		case strings.HasPrefix(origin, "*."):
			c.wildcardDomains = append(c.wildcardDomains, strings.TrimPrefix(origin, "*."))
		default:
			c.allowedOriginsMap[origin] = true
		}
	}

	c.allowedMethods = strings.Join(c.corsConfig.AllowedMethods, ", ")
	c.allowedHeaders = strings.Join(c.corsConfig.AllowedHeaders, ", ")
	c.exposedHeaders = strings.Join(c.corsConfig.ExposedHeaders, ", ")
	c.maxAge = strconv.Itoa(c.corsConfig.MaxAge)
}
