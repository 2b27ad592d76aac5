package secrets

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dexter/internal/config"
	"github.com/fyrsmithlabs/dexter/internal/logging"
)

// Finding is a single detected secret.
type Finding struct {
	RuleID      string
	Description string
	Line        int
	Match       string
}

// Result is the outcome of a scan.
type Result struct {
	Content  string
	Findings []Finding
	Duration time.Duration
}

// Redacted reports whether any secret was replaced.
func (r Result) Redacted() bool {
	return len(r.Findings) > 0
}

// RuleCounts returns the number of findings per rule.
func (r Result) RuleCounts() map[string]int {
	counts := make(map[string]int, len(r.Findings))
	for _, f := range r.Findings {
		counts[f.RuleID]++
	}
	return counts
}

// Redactor scrubs secrets from text with the default Gitleaks rule set.
// It is safe for concurrent use.
type Redactor struct {
	mu       sync.Mutex
	detector *detect.Detector
	logger   *logging.Logger
}

// New builds a Redactor. The detector is compiled once here since loading
// the default rule set is expensive.
func New(allowlist *Allowlist, logger *logging.Logger) (*Redactor, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	detector, err := newDetector(allowlist)
	if err != nil {
		return nil, err
	}
	return &Redactor{detector: detector, logger: logger.Named("secrets")}, nil
}

func newDetector(allowlist *Allowlist) (*detect.Detector, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating gitleaks detector: %w", err)
	}
	if !allowlist.Empty() {
		if err := applyAllowlist(&detector.Config, allowlist); err != nil {
			return nil, err
		}
	}
	return detector, nil
}

// Reload swaps in a detector built with the given allowlist. On error the
// current detector stays in place.
func (r *Redactor) Reload(allowlist *Allowlist) error {
	detector, err := newDetector(allowlist)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.detector = detector
	r.mu.Unlock()
	return nil
}

// FromConfig loads the configured allowlist and builds a Redactor.
func FromConfig(cfg config.SecretsConfig, logger *logging.Logger) (*Redactor, error) {
	allowlist, err := LoadAllowlist(cfg.AllowlistPath)
	if err != nil {
		return nil, fmt.Errorf("loading allowlist: %w", err)
	}
	return New(allowlist, logger)
}

// Redact returns content with every detected secret replaced by a marker.
func (r *Redactor) Redact(content string) string {
	return r.Scan(content).Content
}

// Scan detects and redacts secrets, returning the findings alongside the
// redacted content.
func (r *Redactor) Scan(content string) Result {
	start := time.Now()
	if strings.TrimSpace(content) == "" {
		return Result{Content: content}
	}

	r.mu.Lock()
	raw := r.detector.DetectString(content)
	r.mu.Unlock()

	findings := make([]Finding, 0, len(raw))
	for _, f := range raw {
		if f.Secret == "" {
			continue
		}
		findings = append(findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine,
			Match:       f.Secret,
		})
	}

	result := Result{
		Content:  replaceFindings(content, findings),
		Findings: findings,
		Duration: time.Since(start),
	}
	if result.Redacted() {
		r.logger.Debug(context.Background(), "redacted secrets",
			zap.Int("count", len(findings)),
			zap.Any("rules", result.RuleCounts()),
			zap.Duration("duration", result.Duration))
	}
	return result
}

// replaceFindings substitutes every occurrence of each secret, longest
// first so a secret that contains another is replaced whole.
func replaceFindings(content string, findings []Finding) string {
	if len(findings) == 0 {
		return content
	}

	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Match) > len(sorted[j].Match)
	})

	for _, f := range sorted {
		content = strings.ReplaceAll(content, f.Match, marker(f.RuleID))
	}
	return content
}

func marker(ruleID string) string {
	if ruleID == "" {
		ruleID = "secret"
	}
	return "[REDACTED:" + ruleID + "]"
}

// applyAllowlist appends the allowlist to the detector's global allowlists.
func applyAllowlist(cfg *gitleaksConfig.Config, allowlist *Allowlist) error {
	global := &gitleaksConfig.Allowlist{
		Description: "dexter allowlist",
		StopWords:   allowlist.StopWords,
	}
	for _, pattern := range allowlist.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%w: '%s': %v", ErrInvalidRegex, pattern, err)
		}
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	cfg.Allowlists = append(cfg.Allowlists, global)
	return nil
}
