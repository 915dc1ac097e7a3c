package health

import (
	"context"
	"sort"

	certs "github.com/saiset-co/b2b-portal/tls"
	"github.com/saiset-co/b2b-portal/types"
)

// CacheChecker reports the cache store size and fails when the store is
// not running.
func CacheChecker(cache types.CacheManager) types.HealthChecker {
	return func(_ context.Context) types.HealthCheck {
		if cache == nil || !cache.IsRunning() {
			return types.HealthCheck{Status: types.StatusUnhealthy, Message: "cache is not running"}
		}

		return types.HealthCheck{
			Status:  types.StatusHealthy,
			Details: map[string]interface{}{"size": cache.Stats().Size},
		}
	}
}

// BreakerChecker maps a circuit breaker state to health. An open breaker
// means the upstream is failing, half-open is reported as unknown.
func BreakerChecker(state func() string) types.HealthChecker {
	return func(_ context.Context) types.HealthCheck {
		current := state()
		details := map[string]interface{}{"circuit_breaker": current}

		switch current {
		case "open":
			return types.HealthCheck{Status: types.StatusUnhealthy, Message: "upstream circuit breaker is open", Details: details}
		case "half-open":
			return types.HealthCheck{Status: types.StatusUnknown, Message: "upstream is recovering", Details: details}
		default:
			return types.HealthCheck{Status: types.StatusHealthy, Details: details}
		}
	}
}

// CertificateChecker fails on expired or unreadable certificates and reports
// certificates close to expiry as unknown.
func CertificateChecker(status func() map[string]types.CertificateStatus) types.HealthChecker {
	return func(_ context.Context) types.HealthCheck {
		certificates := status()

		domains := make([]string, 0, len(certificates))
		for domain := range certificates {
			domains = append(domains, domain)
		}
		sort.Strings(domains)

		result := types.HealthCheck{Status: types.StatusHealthy, Details: make(map[string]interface{}, len(domains))}

		for _, domain := range domains {
			cert := certificates[domain]
			result.Details[domain] = cert.Status

			switch cert.Status {
			case certs.StatusExpired, certs.StatusError:
				result.Status = types.StatusUnhealthy
				result.Message = "certificate for " + domain + " is " + cert.Status
			case certs.StatusExpiringSoon:
				if result.Status == types.StatusHealthy {
					result.Status = types.StatusUnknown
					result.Message = "certificate for " + domain + " expires soon"
				}
			}
		}

		return result
	}
}
