package core

import (
	"fmt"
	"strings"
)

type WebhookConfig struct {
	// FailureLimit is the consecutive terminal-failure streak after which
	// an endpoint is deactivated. 0 disables auto-deactivation.
	FailureLimit    int    `koanf:"failure_limit" mapstructure:"failure_limit"`
	SignatureHeader string `koanf:"signature_header" mapstructure:"signature_header"`
	EventIDHeader   string `koanf:"event_id_header" mapstructure:"event_id_header"`
}

type ProofConfig struct {
	Enabled         bool   `koanf:"enabled" mapstructure:"enabled"`
	ChainID         int64  `koanf:"chain_id" mapstructure:"chain_id"`
	ContractAddress string `koanf:"contract_address" mapstructure:"contract_address"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Webhooks    WebhookConfig `koanf:"webhooks" mapstructure:"webhooks"`
	Proof       ProofConfig   `koanf:"proof" mapstructure:"proof"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "payments",
		Webhooks: WebhookConfig{
			FailureLimit:    10,
			SignatureHeader: "X-Payments-Signature",
			EventIDHeader:   "X-Payments-Event-Id",
		},
		Proof: ProofConfig{},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Webhooks.FailureLimit < 0 {
		return fmt.Errorf("core: webhooks.failure_limit must be >= 0")
	}
	if c.Proof.Enabled && strings.TrimSpace(c.Proof.ContractAddress) == "" {
		return fmt.Errorf("core: proof.contract_address is required when proof recording is enabled")
	}
	return nil
}
