package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/b2b-portal/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const (
	StatusValid        = "valid"
	StatusExpiringSoon = "expiring_soon"
	StatusExpired      = "expired"
	StatusError        = "error"

	defaultCacheDir = "./certs"
	renewalWindow   = 30 * 24 * time.Hour
)

var cipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// CertManager terminates TLS for the portal, either from a static key pair
// or from ACME certificates managed by autocert.
type CertManager struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	config          *types.TLSConfig
	autocertMgr     *autocert.Manager
	stopCh          chan struct{}
	mu              sync.RWMutex
	certificates    map[string]*tls.Certificate
	state           atomic.Value
	renewalInterval time.Duration
	now             func() time.Time
}

func NewCertManager(ctx context.Context, logger types.Logger, config *types.TLSConfig) (*CertManager, error) {
	if config == nil {
		return nil, types.ErrConfigIsNil
	}

	managerCtx, cancel := context.WithCancel(ctx)

	cm := &CertManager{
		ctx:             managerCtx,
		cancel:          cancel,
		logger:          logger,
		config:          config,
		stopCh:          make(chan struct{}),
		certificates:    make(map[string]*tls.Certificate),
		renewalInterval: 12 * time.Hour,
		now:             time.Now,
	}

	cm.state.Store(StateStopped)

	var err error
	if config.AutoCert {
		err = cm.initializeAutocert()
	} else {
		err = cm.loadKeyPair()
	}

	if err != nil {
		cancel()
		return nil, err
	}

	return cm, nil
}

// Listen opens a TLS listener on addr.
func (cm *CertManager) Listen(addr string) (net.Listener, error) {
	ln, err := tls.Listen("tcp", addr, cm.TLSConfig())
	if err != nil {
		return nil, types.WrapError(types.ErrServerStartFailed, err.Error())
	}
	return ln, nil
}

func (cm *CertManager) TLSConfig() *tls.Config {
	config := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		CipherSuites: cipherSuites,
		NextProtos:   []string{"http/1.1"},
	}

	if cm.autocertMgr != nil {
		config.GetCertificate = cm.logCertificateErrors(cm.autocertMgr.GetCertificate)
		config.NextProtos = append(config.NextProtos, acme.ALPNProto)
		return config
	}

	cm.mu.RLock()
	for _, cert := range cm.certificates {
		config.Certificates = append(config.Certificates, *cert)
	}
	cm.mu.RUnlock()

	return config
}

func (cm *CertManager) Start() error {
	if !cm.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	if cm.autocertMgr != nil {
		cm.preloadCertificates()
		go cm.renewalMonitor()
	}

	cm.setState(StateRunning)

	cm.logger.Info("TLS certificate manager started",
		zap.Bool("auto_cert", cm.config.AutoCert),
		zap.Strings("domains", cm.domains()))

	return nil
}

func (cm *CertManager) Stop() error {
	if !cm.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	close(cm.stopCh)
	cm.cancel()
	cm.setState(StateStopped)

	cm.logger.Info("TLS certificate manager stopped")
	return nil
}

func (cm *CertManager) IsRunning() bool {
	return cm.getState() == StateRunning
}

func (cm *CertManager) getState() State {
	return cm.state.Load().(State)
}

func (cm *CertManager) setState(newState State) bool {
	currentState := cm.getState()
	return cm.state.CompareAndSwap(currentState, newState)
}

func (cm *CertManager) transitionState(from, to State) bool {
	return cm.state.CompareAndSwap(from, to)
}

func (cm *CertManager) loadKeyPair() error {
	cert, err := tls.LoadX509KeyPair(cm.config.CertFile, cm.config.KeyFile)
	if err != nil {
		return types.Errorf(types.ErrTLSCertificateInvalid, "load key pair: %v", err)
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return types.Errorf(types.ErrTLSCertificateInvalid, "parse certificate: %v", err)
	}

	now := cm.now()
	if now.Before(leaf.NotBefore) {
		return types.Errorf(types.ErrTLSCertificateInvalid, "certificate not valid before %s", leaf.NotBefore)
	}
	if now.After(leaf.NotAfter) {
		return types.Errorf(types.ErrTLSCertificateInvalid, "certificate expired at %s", leaf.NotAfter)
	}

	cert.Leaf = leaf

	name := leaf.Subject.CommonName
	if len(leaf.DNSNames) > 0 {
		name = leaf.DNSNames[0]
	}

	cm.certificates[name] = &cert

	return nil
}

func (cm *CertManager) initializeAutocert() error {
	if len(cm.config.Domains) == 0 {
		return types.ErrTLSDomainsEmpty
	}

	for _, domain := range cm.config.Domains {
		if domain == "" {
			return types.Errorf(types.ErrInvalidParameter, "empty domain name")
		}
	}

	cacheDir := cm.config.CacheDir
	if cacheDir == "" {
		cacheDir = defaultCacheDir
	}

	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return types.WrapError(err, "failed to create certificate cache directory")
	}

	cm.autocertMgr = &autocert.Manager{
		Cache:      autocert.DirCache(cacheDir),
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cm.config.Domains...),
		Email:      cm.config.Email,
	}

	if cm.config.ACMEDirectory != "" {
		cm.autocertMgr.Client = &acme.Client{DirectoryURL: cm.config.ACMEDirectory}
	}

	return nil
}

func (cm *CertManager) logCertificateErrors(getCert func(*tls.ClientHelloInfo) (*tls.Certificate, error)) func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
		cert, err := getCert(hello)
		if err != nil {
			cm.logger.Error("Failed to get certificate",
				zap.String("server_name", hello.ServerName),
				zap.Error(err))
			return nil, err
		}
		return cert, nil
	}
}

// preloadCertificates fetches certificates in the background so the first
// handshake does not wait on ACME. Failures only delay issuance.
func (cm *CertManager) preloadCertificates() {
	go func() {
		ctx, cancel := context.WithTimeout(cm.ctx, time.Minute)
		defer cancel()

		g, _ := errgroup.WithContext(ctx)

		for _, domain := range cm.config.Domains {
			d := domain
			g.Go(func() error {
				cm.fetch(d)
				return nil
			})
		}

		_ = g.Wait()
	}()
}

func (cm *CertManager) fetch(domain string) {
	cert, err := cm.autocertMgr.GetCertificate(&tls.ClientHelloInfo{ServerName: domain})
	if err != nil {
		cm.logger.Warn("Failed to fetch certificate", zap.String("domain", domain), zap.Error(err))
		return
	}

	cm.mu.Lock()
	cm.certificates[domain] = cert
	cm.mu.Unlock()

	cm.logger.Info("Certificate loaded", zap.String("domain", domain))
}

func (cm *CertManager) renewalMonitor() {
	ticker := time.NewTicker(cm.renewalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for domain, status := range cm.CertificateStatus() {
				if status.Status != StatusValid {
					cm.logger.Info("Certificate renewal required",
						zap.String("domain", domain),
						zap.Time("expires_at", status.NotAfter))
					cm.fetch(domain)
				}
			}
		case <-cm.stopCh:
			return
		case <-cm.ctx.Done():
			return
		}
	}
}

func (cm *CertManager) domains() []string {
	if cm.config.AutoCert {
		return cm.config.Domains
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	names := make([]string, 0, len(cm.certificates))
	for name := range cm.certificates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CertificateStatus reports validity per domain. Certificates within thirty
// days of expiry are expiring_soon.
func (cm *CertManager) CertificateStatus() map[string]types.CertificateStatus {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	now := cm.now()
	status := make(map[string]types.CertificateStatus, len(cm.certificates))

	for domain, cert := range cm.certificates {
		leaf := cert.Leaf
		if leaf == nil {
			if len(cert.Certificate) == 0 {
				status[domain] = types.CertificateStatus{Domain: domain, Status: StatusError, Error: "no certificate data"}
				continue
			}

			parsed, err := x509.ParseCertificate(cert.Certificate[0])
			if err != nil {
				status[domain] = types.CertificateStatus{Domain: domain, Status: StatusError, Error: err.Error()}
				continue
			}
			leaf = parsed
		}

		certStatus := StatusValid
		switch {
		case !now.Before(leaf.NotAfter):
			certStatus = StatusExpired
		case now.Add(renewalWindow).After(leaf.NotAfter):
			certStatus = StatusExpiringSoon
		}

		status[domain] = types.CertificateStatus{
			Domain:          domain,
			Status:          certStatus,
			Issuer:          leaf.Issuer.String(),
			Subject:         leaf.Subject.String(),
			NotBefore:       leaf.NotBefore,
			NotAfter:        leaf.NotAfter,
			DaysUntilExpiry: int(leaf.NotAfter.Sub(now).Hours() / 24),
		}
	}

	return status
}
