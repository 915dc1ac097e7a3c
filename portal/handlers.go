package portal

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/b2b-portal/cache"
	"github.com/saiset-co/b2b-portal/normalize"
	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

const defaultRequestTimeout = 30 * time.Second

// Handlers serves the buyer portal API: memoized upstream reads passed
// through the normalizers, writes that invalidate the affected keys, and
// cache administration.
type Handlers struct {
	upstream Upstream
	memo     *cache.Memoizer
	store    types.CacheManager
	logger   types.Logger
	loc      *time.Location
	ttls     map[string]time.Duration
	timeout  time.Duration
	now      func() time.Time
	guard    func(types.FastHTTPHandler) types.FastHTTPHandler
}

// InvoicesResponse is the body of the company invoices route.
type InvoicesResponse struct {
	Invoices []normalize.FrontendInvoice `json:"invoices"`
	Aging    normalize.AgingSummary      `json:"aging"`
	Credit   normalize.CreditSummary     `json:"credit"`
}

type invalidateRequest struct {
	Pattern string `json:"pattern"`
	Regex   bool   `json:"regex"`
}

func NewHandlers(upstream Upstream, memo *cache.Memoizer, logger types.Logger, config *types.PortalConfig) (*Handlers, error) {
	h := &Handlers{
		upstream: upstream,
		memo:     memo,
		store:    memo.Store(),
		logger:   logger,
		loc:      time.UTC,
		ttls:     resolveTTLs(nil),
		timeout:  defaultRequestTimeout,
		now:      time.Now,
		guard:    func(next types.FastHTTPHandler) types.FastHTTPHandler { return next },
	}

	if config == nil {
		return h, nil
	}

	if config.Timezone != "" {
		loc, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, types.WrapError(err, "failed to load portal timezone")
		}
		h.loc = loc
	}

	if config.RequestTimeout > 0 {
		h.timeout = config.RequestTimeout
	}

	h.ttls = resolveTTLs(config.TTL)

	return h, nil
}

// SetAdminGuard wraps the cache administration routes registered afterwards.
func (h *Handlers) SetAdminGuard(guard func(types.FastHTTPHandler) types.FastHTTPHandler) {
	if guard != nil {
		h.guard = guard
	}
}

func (h *Handlers) Register(router types.HTTPRouter) {
	api := router.Group("/api")

	api.GET("/users/{id}", h.GetUser)
	api.GET("/users/{id}/orders", h.GetUserOrders)
	api.GET("/users/{id}/cart", h.GetCart)

	api.GET("/companies/{id}", h.GetCompany)
	api.GET("/companies/{id}/users", h.GetCompanyUsers)
	api.GET("/companies/{id}/addresses", h.GetAddresses)
	api.POST("/companies/{id}/addresses", h.CreateAddress)
	api.GET("/companies/{id}/invoices", h.GetInvoices)
	api.GET("/companies/{id}/quotes", h.GetQuotes)

	api.GET("/orders/{id}", h.GetOrder)
	api.PUT("/orders/{id}", h.UpdateOrder)

	api.GET("/products", h.GetProducts)

	api.GET("/cache/stats", h.guard(h.CacheStats))
	api.POST("/cache/invalidate", h.guard(h.InvalidateCache))
	api.DELETE("/cache", h.guard(h.ClearCache))
}

func (h *Handlers) ttl(kind string) time.Duration {
	return h.ttls[kind]
}

func (h *Handlers) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.timeout)
}

func pathID(ctx *fasthttp.RequestCtx) (string, error) {
	id, _ := ctx.UserValue("id").(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return "", invalidParam("id is required")
	}
	return id, nil
}

// serve runs fn with the request id and writes its result as JSON.
func serve[T any](h *Handlers, ctx *fasthttp.RequestCtx, status int, fn func(context.Context, string) (T, error)) {
	id, err := pathID(ctx)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	reqCtx, cancel := h.requestContext()
	defer cancel()

	result, err := fn(reqCtx, id)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, status, result)
}

func (h *Handlers) GetUser(ctx *fasthttp.RequestCtx) {
	serve(h, ctx, fasthttp.StatusOK, func(c context.Context, id string) (normalize.Record, error) {
		return cache.Memoize(c, h.memo, cache.UserKey(id), h.ttl(cache.KindUser), func(c context.Context) (normalize.Record, error) {
			return h.upstream.Get(c, userPath(id), nil)
		})
	})
}

func (h *Handlers) GetCompany(ctx *fasthttp.RequestCtx) {
	serve(h, ctx, fasthttp.StatusOK, func(c context.Context, id string) (normalize.Record, error) {
		return cache.Memoize(c, h.memo, cache.CompanyKey(id), h.ttl(cache.KindCompany), func(c context.Context) (normalize.Record, error) {
			return h.upstream.Get(c, companyPath(id), nil)
		})
	})
}

func (h *Handlers) GetCompanyUsers(ctx *fasthttp.RequestCtx) {
	serve(h, ctx, fasthttp.StatusOK, func(c context.Context, id string) ([]normalize.Record, error) {
		return cache.Memoize(c, h.memo, cache.CompanyUsersKey(id), h.ttl(cache.KindUsers), func(c context.Context) ([]normalize.Record, error) {
			return h.upstream.List(c, usersPath, url.Values{"companyId": {id}})
		})
	})
}

func (h *Handlers) GetUserOrders(ctx *fasthttp.RequestCtx) {
	serve(h, ctx, fasthttp.StatusOK, func(c context.Context, id string) ([]normalize.FrontendOrder, error) {
		return cache.Memoize(c, h.memo, cache.UserOrdersKey(id), h.ttl(cache.KindOrders), func(c context.Context) ([]normalize.FrontendOrder, error) {
			records, err := h.upstream.List(c, ordersPath, url.Values{"userId": {id}})
			if err != nil {
				return nil, err
			}
			return normalize.Orders(records), nil
		})
	})
}

func (h *Handlers) GetOrder(ctx *fasthttp.RequestCtx) {
	serve(h, ctx, fasthttp.StatusOK, func(c context.Context, id string) (normalize.FrontendOrder, error) {
		return cache.Memoize(c, h.memo, cache.OrderKey(id), h.ttl(cache.KindOrder), func(c context.Context) (normalize.FrontendOrder, error) {
			return h.fetchOrder(c, id)
		})
	})
}

func (h *Handlers) fetchOrder(ctx context.Context, id string) (normalize.FrontendOrder, error) {
	record, err := h.upstream.Get(ctx, orderPath(id), nil)
	if err != nil {
		return normalize.FrontendOrder{}, err
	}
	return normalize.Order(record), nil
}

// UpdateOrder forwards the body to the upstream, then drops the order and
// every per-user order list since the order's owner is not known here.
func (h *Handlers) UpdateOrder(ctx *fasthttp.RequestCtx) {
	body, err := jsonObject(ctx.PostBody())
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	serve(h, ctx, fasthttp.StatusOK, func(c context.Context, id string) (normalize.FrontendOrder, error) {
		record, err := h.upstream.Put(c, orderPath(id), body)
		if err != nil {
			return normalize.FrontendOrder{}, err
		}

		h.deleteKey(cache.OrderKey(id))
		h.invalidate(cache.Prefix(cache.KindOrders + ":user:"))

		if len(record) == 0 {
			return h.fetchOrder(c, id)
		}
		return normalize.Order(record), nil
	})
}

func (h *Handlers) GetAddresses(ctx *fasthttp.RequestCtx) {
	serve(h, ctx, fasthttp.StatusOK, func(c context.Context, id string) ([]normalize.FrontendAddress, error) {
		return cache.Memoize(c, h.memo, cache.CompanyAddressesKey(id), h.ttl(cache.KindAddresses), func(c context.Context) ([]normalize.FrontendAddress, error) {
			records, err := h.upstream.List(c, addressesPath, url.Values{"companyId": {id}})
			if err != nil {
				return nil, err
			}
			return normalize.Addresses(records), nil
		})
	})
}

func (h *Handlers) CreateAddress(ctx *fasthttp.RequestCtx) {
	body, err := jsonObject(ctx.PostBody())
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	serve(h, ctx, fasthttp.StatusCreated, func(c context.Context, id string) (normalize.FrontendAddress, error) {
		body["companyId"] = id

		record, err := h.upstream.Post(c, addressesPath, body)
		if err != nil {
			return normalize.FrontendAddress{}, err
		}

		h.deleteKey(cache.CompanyAddressesKey(id))

		return normalize.Address(record), nil
	})
}

func (h *Handlers) GetCart(ctx *fasthttp.RequestCtx) {
	serve(h, ctx, fasthttp.StatusOK, func(c context.Context, id string) (normalize.Record, error) {
		return cache.Memoize(c, h.memo, cache.UserCartKey(id), h.ttl(cache.KindCart), func(c context.Context) (normalize.Record, error) {
			return h.upstream.Get(c, cartPath(id), nil)
		})
	})
}

func (h *Handlers) GetProducts(ctx *fasthttp.RequestCtx) {
	query, err := url.ParseQuery(string(ctx.QueryArgs().QueryString()))
	if err != nil {
		h.writeError(ctx, invalidParam("query: %v", err))
		return
	}

	reqCtx, cancel := h.requestContext()
	defer cancel()

	products, err := cache.Memoize(reqCtx, h.memo, cache.ProductsKey(query), h.ttl(cache.KindProducts), func(c context.Context) ([]normalize.Record, error) {
		return h.upstream.List(c, productsPath, query)
	})
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, products)
}

// GetInvoices caches the normalized invoices and the credit record, but
// derives statuses and aging per request so "today" stays current.
func (h *Handlers) GetInvoices(ctx *fasthttp.RequestCtx) {
	serve(h, ctx, fasthttp.StatusOK, func(c context.Context, id string) (InvoicesResponse, error) {
		var (
			invoices []normalize.FrontendInvoice
			credit   normalize.Record
		)

		g, gCtx := errgroup.WithContext(c)

		g.Go(func() error {
			var err error
			invoices, err = cache.Memoize(gCtx, h.memo, cache.CompanyInvoicesKey(id), h.ttl(cache.KindInvoices), func(c context.Context) ([]normalize.FrontendInvoice, error) {
				records, err := h.upstream.List(c, invoicesPath, url.Values{"companyId": {id}})
				if err != nil {
					return nil, err
				}
				return normalize.Invoices(records), nil
			})
			return err
		})

		g.Go(func() error {
			record, err := cache.Memoize(gCtx, h.memo, cache.CompanyCreditKey(id), h.ttl(cache.KindCredit), func(c context.Context) (normalize.Record, error) {
				return h.upstream.Get(c, creditPath(id), nil)
			})
			if err != nil {
				h.logger.Warn("Company credit unavailable", zap.String("company_id", id), zap.Error(err))
				return nil
			}
			credit = record
			return nil
		})

		if err := g.Wait(); err != nil {
			return InvoicesResponse{}, err
		}

		now := h.now()
		aging := normalize.Aging(invoices, now, h.loc)

		return InvoicesResponse{
			Invoices: normalize.Classify(invoices, now, h.loc),
			Aging:    aging,
			Credit:   normalize.Credit(credit, aging.TotalOpen),
		}, nil
	})
}

func (h *Handlers) GetQuotes(ctx *fasthttp.RequestCtx) {
	serve(h, ctx, fasthttp.StatusOK, func(c context.Context, id string) ([]normalize.FrontendQuote, error) {
		return cache.Memoize(c, h.memo, cache.CompanyQuotesKey(id), h.ttl(cache.KindQuotes), func(c context.Context) ([]normalize.FrontendQuote, error) {
			data, err := h.upstream.GraphQL(c, quotesQuery, map[string]interface{}{
				"companyId": id,
				"first":     quotesPageSize,
			})
			if err != nil {
				return nil, err
			}
			return normalize.Quotes(normalize.Nodes(data["quotes"])), nil
		})
	})
}

func (h *Handlers) CacheStats(ctx *fasthttp.RequestCtx) {
	utils.WriteJSON(ctx, fasthttp.StatusOK, h.store.Stats())
}

func (h *Handlers) InvalidateCache(ctx *fasthttp.RequestCtx) {
	var req invalidateRequest
	if err := utils.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, invalidParam("body: %v", err))
		return
	}

	if strings.TrimSpace(req.Pattern) == "" {
		h.writeError(ctx, invalidParam("pattern is required"))
		return
	}

	pattern, err := cache.ParsePattern(req.Pattern, req.Regex)
	if err != nil {
		h.writeError(ctx, invalidParam("%v", err))
		return
	}

	removed, err := h.store.Invalidate(pattern)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	h.requestLogger(ctx).Info("Cache invalidated", zap.String("pattern", pattern.String()), zap.Int("removed", removed))
	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]int{"removed": removed})
}

func (h *Handlers) ClearCache(ctx *fasthttp.RequestCtx) {
	if err := h.store.Clear(); err != nil {
		h.writeError(ctx, err)
		return
	}

	h.requestLogger(ctx).Info("Cache cleared")
	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]bool{"cleared": true})
}

// invalidate drops keys after a successful write. Failures only cost
// freshness until the TTL runs out, so they are logged.
func (h *Handlers) invalidate(patterns ...types.KeyPattern) {
	for _, pattern := range patterns {
		removed, err := h.store.Invalidate(pattern)
		if err != nil {
			h.logger.Warn("Cache invalidation failed", zap.String("pattern", pattern.String()), zap.Error(err))
			continue
		}
		h.logger.Debug("Cache invalidated", zap.String("pattern", pattern.String()), zap.Int("removed", removed))
	}
}

func (h *Handlers) deleteKey(key string) {
	if err := h.store.Delete(key); err != nil {
		h.logger.Warn("Cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

func jsonObject(body []byte) (map[string]interface{}, error) {
	if len(body) == 0 {
		return nil, invalidParam("request body is required")
	}

	var object map[string]interface{}
	if err := utils.Unmarshal(body, &object); err != nil {
		return nil, invalidParam("request body must be a JSON object")
	}
	if object == nil {
		return nil, invalidParam("request body must be a JSON object")
	}

	return object, nil
}
