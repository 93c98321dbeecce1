package detector

import (
	"context"
	"fmt"

	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

// SanctionsDetector checks the account, merchant and geography against the
// watchlist snapshot. Matching is exact only; any hit is a FAIL, never a
// WARNING, so aggregation can apply its hard floor.
type SanctionsDetector struct {
	cfg *config.DetectorsConfig
	log *logger.Logger
}

// NewSanctionsDetector creates the sanctions/geography screener
func NewSanctionsDetector(cfg *config.DetectorsConfig, log *logger.Logger) *SanctionsDetector {
	return &SanctionsDetector{
		cfg: cfg,
		log: log.Named(domain.DetectorSanctions),
	}
}

func (d *SanctionsDetector) Name() string { return domain.DetectorSanctions }

func (d *SanctionsDetector) Detect(_ context.Context, in *Input) (*domain.RiskFinding, error) {
	finding := newFinding(d.Name())
	tx := in.Transaction
	lists := in.Watchlists

	if lists.Contains(domain.ListSanctionedAccounts, tx.AccountID.String()) {
		finding.AddDetail("sanctioned_account",
			fmt.Sprintf("account %s is on the sanctioned accounts list", tx.AccountID),
			d.cfg.AccountMatchScore)
		finding.Status = domain.FindingFail
	}

	if m := tx.Merchant.MerchantID; m != "" && lists.Contains(domain.ListSanctionedMerchants, m) {
		finding.AddDetail("sanctioned_merchant",
			fmt.Sprintf("merchant %s is on the sanctioned merchants list", m),
			d.cfg.MerchantMatchScore)
		finding.Status = domain.FindingFail
	}

	if c := tx.Merchant.Country; c != "" && lists.Contains(domain.ListSanctionedCountries, c) {
		finding.AddDetail("sanctioned_country",
			fmt.Sprintf("merchant country %s is sanctioned", c),
			d.cfg.CountryMatchScore)
		finding.Status = domain.FindingFail
	}

	if s := tx.Merchant.State; s != "" && lists.Contains(domain.ListHighRiskStates, s) {
		finding.AddDetail("high_risk_state",
			fmt.Sprintf("merchant state %s is high risk", s),
			d.cfg.StateMatchScore)
		finding.Status = domain.FindingFail
	}

	return finding, nil
}
