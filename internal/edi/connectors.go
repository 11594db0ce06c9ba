package edi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
)

// Connector is the rail-specific client implementing submit/poll/validate
// against one insurer communication channel. Submit must be safe to call more
// than once for the same claim; the pipeline aims for submitted-at-least-once,
// not exactly-once.
type Connector interface {
	Rail() domain.Rail
	Validate(ctx context.Context, claim *domain.Claim) (*ValidationResult, error)
	Submit(ctx context.Context, claim *domain.Claim) (*SubmissionResult, error)
	PollStatus(ctx context.Context, claim *domain.Claim, externalID string) (*StatusResult, error)
}

var (
	dentalCodeRx  = regexp.MustCompile(`^[0-9]{5}$`)
	eclaimsCodeRx = regexp.MustCompile(`^[0-9A-Z]{4,7}$`)
)

// Rail field widths cap the billable amount on the electronic rails.
const eclaimsMaxAmountCents = 9_999_999

// validateForRail runs the structural and business-rule checks for a rail.
// Returned messages are reported to the caller, never retried.
func validateForRail(rail domain.Rail, cfg domain.InsurerRailConfig, claim *domain.Claim) []string {
	var errs []string

	if claim.OrgID == "" {
		errs = append(errs, "organization id is required")
	}
	if claim.AmountCents <= 0 {
		errs = append(errs, "claim amount must be positive")
	}
	if len(claim.ProcedureCodes) == 0 {
		errs = append(errs, "at least one procedure code is required")
	}
	if !cfg.SupportsClaimType(claim.Type) {
		errs = append(errs, fmt.Sprintf("insurer %s does not accept %s submissions", cfg.Name, claim.Type))
	}

	switch rail {
	case domain.RailDentalNetwork:
		for _, code := range claim.ProcedureCodes {
			if !dentalCodeRx.MatchString(code) {
				errs = append(errs, fmt.Sprintf("procedure code %q is not a valid 5-digit dental code", code))
			}
		}
	case domain.RailEClaims:
		for _, code := range claim.ProcedureCodes {
			if !eclaimsCodeRx.MatchString(code) {
				errs = append(errs, fmt.Sprintf("procedure code %q is not a valid e-claims code", code))
			}
		}
		if claim.AmountCents > eclaimsMaxAmountCents {
			errs = append(errs, "claim amount exceeds the e-claims rail maximum")
		}
	case domain.RailPortalUpload:
		// Portal uploads are reviewed manually; structural checks only.
	}

	return errs
}

// sandboxConnector answers submit/poll/validate synthetically: the isolation
// gateway fronts every call and the mock generator shapes the response.
type sandboxConnector struct {
	cfg     domain.InsurerRailConfig
	gateway *Gateway
	mockgen *MockResponseGenerator
	actor   domain.Actor
}

func (c *sandboxConnector) Rail() domain.Rail { return c.cfg.Rail }

func (c *sandboxConnector) Validate(ctx context.Context, claim *domain.Claim) (*ValidationResult, error) {
	errs := validateForRail(c.cfg.Rail, c.cfg, claim)
	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

func (c *sandboxConnector) Submit(ctx context.Context, claim *domain.Claim) (*SubmissionResult, error) {
	if err := c.guard(ctx, http.MethodPost); err != nil {
		return nil, err
	}
	return c.mockgen.Submission(c.cfg, claim), nil
}

func (c *sandboxConnector) PollStatus(ctx context.Context, claim *domain.Claim, externalID string) (*StatusResult, error) {
	if err := c.guard(ctx, http.MethodGet); err != nil {
		return nil, err
	}
	return c.mockgen.PollStatus(c.cfg, claim, externalID), nil
}

func (c *sandboxConnector) guard(ctx context.Context, method string) error {
	host, err := hostOf(c.cfg.Endpoint)
	if err != nil {
		return err
	}
	if err := c.gateway.CheckHost(host, method, c.cfg.Endpoint, c.actor); err != nil {
		return err
	}
	return c.gateway.Simulate(ctx)
}

// httpConnector is the production-path client. Wire formats stay synthetic
// JSON here; a real rail implementation would replace the codec behind the
// same interface.
type httpConnector struct {
	cfg    domain.InsurerRailConfig
	client *http.Client
	logger *slog.Logger
}

func (c *httpConnector) Rail() domain.Rail { return c.cfg.Rail }

func (c *httpConnector) Validate(ctx context.Context, claim *domain.Claim) (*ValidationResult, error) {
	errs := validateForRail(c.cfg.Rail, c.cfg, claim)
	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

type wireSubmission struct {
	ClaimID        string   `json:"claim_id"`
	OrgID          string   `json:"org_id"`
	ClaimType      string   `json:"claim_type"`
	AmountCents    int64    `json:"amount_cents"`
	ProcedureCodes []string `json:"procedure_codes"`
}

func (c *httpConnector) Submit(ctx context.Context, claim *domain.Claim) (*SubmissionResult, error) {
	body, err := json.Marshal(wireSubmission{
		ClaimID:        claim.ID,
		OrgID:          claim.OrgID,
		ClaimType:      string(claim.Type),
		AmountCents:    claim.AmountCents,
		ProcedureCodes: claim.ProcedureCodes,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding submission: %w", err)
	}

	var result SubmissionResult
	if err := c.do(ctx, http.MethodPost, c.cfg.Endpoint+"/claims", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpConnector) PollStatus(ctx context.Context, claim *domain.Claim, externalID string) (*StatusResult, error) {
	var result StatusResult
	u := c.cfg.Endpoint + "/claims/" + url.PathEscape(externalID)
	if err := c.do(ctx, http.MethodGet, u, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpConnector) do(ctx context.Context, method, u string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building %s request: %w", c.cfg.Rail, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Insurer", c.cfg.Name)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s call failed: %w: %v", c.cfg.Rail, ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("upstream returned non-success status",
			"insurer_id", c.cfg.Name,
			"status_code", resp.StatusCode,
		)
		return &UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", c.cfg.Rail, err)
	}
	return nil
}

// ConnectorSet resolves an insurer to its production connector. Resolution
// happens per attempt, so an endpoint change takes effect on the next retry.
type ConnectorSet struct {
	registry *domain.InsurerRegistry
	client   *http.Client
	logger   *slog.Logger
}

func NewConnectorSet(registry *domain.InsurerRegistry, timeout time.Duration, logger *slog.Logger) *ConnectorSet {
	return &ConnectorSet{
		registry: registry,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// ForInsurer returns the production connector for the insurer's rail.
func (cs *ConnectorSet) ForInsurer(name string) (Connector, error) {
	cfg, err := cs.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return &httpConnector{cfg: cfg, client: cs.client, logger: cs.logger}, nil
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("invalid endpoint URL %q", rawURL)
	}
	return u.Hostname(), nil
}
