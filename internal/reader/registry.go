package reader

import (
	"go.uber.org/zap"

	"github.com/nhle/mail-integration/internal/config"
	"github.com/nhle/mail-integration/internal/provider"
	"github.com/nhle/mail-integration/internal/provider/gmail"
	"github.com/nhle/mail-integration/internal/provider/imap"
	"github.com/nhle/mail-integration/internal/provider/outlook"
)

// NewRegistry registers the gmail and outlook providers, and imap when it
// is enabled, using the provider settings from cfg.
func NewRegistry(cfg config.ProvidersConfig, logger *zap.Logger) *provider.Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := provider.NewRegistry()

	reg.Register(gmail.Name, gmail.NewFactory(gmail.Config{
		Endpoint: cfg.Gmail.Endpoint,
		Timeout:  cfg.Timeout,
		Logger:   logger,
	}))
	reg.Register(outlook.Name, outlook.NewFactory(outlook.Config{
		BaseURL: cfg.Outlook.BaseURL,
		Timeout: cfg.Timeout,
		Logger:  logger,
	}))
	if cfg.IMAP.Enabled {
		reg.Register(imap.Name, imap.NewFactory(imap.Config{
			Host:      cfg.IMAP.Host,
			Port:      cfg.IMAP.Port,
			TLS:       cfg.IMAP.TLS,
			Mechanism: cfg.IMAP.Mechanism,
			Timeout:   cfg.Timeout,
			Logger:    logger,
		}))
	}
	return reg
}
