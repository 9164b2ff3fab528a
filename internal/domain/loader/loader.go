// Package loader walks a rule directory, parses plain YAML rule sets and
// verifies signed JSON bundles per a configurable signing-mode policy,
// and builds the LoadedRules index the validator pipeline consults.
package loader

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/aegiswall/guardrail/internal/domain/rule"
	"github.com/aegiswall/guardrail/internal/domain/signing"
)

// LoadedRules is the queryable index a loader builds from its sources.
// A loader owns exactly one LoadedRules for its process lifetime;
// Reload and Clear drop and rebuild it wholesale.
type LoadedRules struct {
	RuleSets    []rule.RuleSet
	AllRules    []rule.Rule
	GlobalRules []rule.Rule
	ByTool      map[string][]rule.Rule
	Sources     []string
}

// GetRulesForTool returns the enabled global rules followed by the
// enabled rules scoped to tool — global rules always come first.
func (lr *LoadedRules) GetRulesForTool(tool string) []rule.Rule {
	var out []rule.Rule
	for _, r := range lr.GlobalRules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	for _, r := range lr.ByTool[tool] {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// Loader walks a directory of rule sources and maintains a LoadedRules
// index. Rules() is safe for concurrent readers; mutating calls
// (LoadFromDirectory, LoadFromFile, LoadFromString, Reload, Clear) must
// be serialized by the embedding host against active validations
// since it's a shared resource.
type Loader struct {
	mu                sync.RWMutex
	loaded            *LoadedRules
	signingConfigured bool
	signing           signing.SigningConfig
	trustedKeys       signing.TrustedKeys
	logger            *slog.Logger

	sourceOrder    []string
	sourceRuleSets map[string]rule.RuleSet
	fingerprints   map[string]uint64 // source -> xxhash of last-loaded content, for idempotent re-add
}

// Option configures a Loader at construction time.
type Option func(*Loader)

// WithSigningConfig sets the signing-mode policy applied to .signed.json
// bundles. Omitting this option leaves signing "absent", which — per the
// signing-mode policy table — skips every signed bundle with a warning.
func WithSigningConfig(cfg signing.SigningConfig, trusted signing.TrustedKeys) Option {
	return func(l *Loader) {
		l.signingConfigured = true
		l.signing = cfg
		l.trustedKeys = trusted
	}
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New creates an empty Loader. With no WithSigningConfig option, every
// .signed.json source encountered is skipped per the "signing not
// configured" policy row.
func New(opts ...Option) *Loader {
	l := &Loader{
		loaded:         &LoadedRules{ByTool: map[string][]rule.Rule{}},
		logger:         slog.Default(),
		sourceRuleSets: map[string]rule.RuleSet{},
		fingerprints:   map[string]uint64{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Rules returns the current index. Callers must not mutate the returned
// value; treat it as an immutable snapshot.
func (l *Loader) Rules() *LoadedRules {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// Clear drops the current index and all source bookkeeping.
func (l *Loader) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = &LoadedRules{ByTool: map[string][]rule.Rule{}}
	l.sourceOrder = nil
	l.sourceRuleSets = map[string]rule.RuleSet{}
	l.fingerprints = map[string]uint64{}
}

// LoadFromDirectory recursively walks dir, parses every .yaml/.yml file
// as a plain rule set, and every .signed.json file as a signed bundle
// subject to the signing-mode policy, then rebuilds the index from
// scratch. Because the whole directory is re-walked and the prior index
// discarded, repeated calls over an unchanged directory are idempotent.
func (l *Loader) LoadFromDirectory(dir string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sourceRuleSets := map[string]rule.RuleSet{}
	fingerprints := map[string]uint64{}
	var order []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch {
		case strings.HasSuffix(path, ".signed.json"):
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				return fmt.Errorf("read signed bundle %s: %w", path, readErr)
			}
			rs, ok, loadErr := l.loadSignedBundleBytes(path, data)
			if loadErr != nil {
				return loadErr
			}
			if ok {
				sourceRuleSets[path] = rs
				fingerprints[path] = fingerprint(data)
				order = append(order, path)
			}
		case strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml"):
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				l.logger.Warn("skipping unreadable rule file", "path", path, "error", readErr)
				return nil
			}
			rs, ok := l.loadPlainBytes(path, data)
			if ok {
				sourceRuleSets[path] = rs
				fingerprints[path] = fingerprint(data)
				order = append(order, path)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk rule directory %s: %w", dir, err)
	}

	l.sourceRuleSets = sourceRuleSets
	l.fingerprints = fingerprints
	l.sourceOrder = order
	l.loaded = buildIndex(order, sourceRuleSets)
	return nil
}

// LoadFromFile loads a single source file (plain or signed) and merges
// it into the current index, keyed by path. Re-loading the same path
// with unchanged content is a no-op (xxhash fingerprint comparison); with
// changed content, it replaces that source's rule set in place.
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rule source %s: %w", path, err)
	}
	fp := fingerprint(data)

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.fingerprints[path]; ok && existing == fp {
		return nil
	}

	var rs rule.RuleSet
	var ok bool
	switch {
	case strings.HasSuffix(path, ".signed.json"):
		rs, ok, err = l.loadSignedBundleBytes(path, data)
		if err != nil {
			return err
		}
	case strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml"):
		rs, ok = l.loadPlainBytes(path, data)
	default:
		return fmt.Errorf("unrecognized rule source extension: %s", path)
	}
	if !ok {
		return nil
	}

	if _, existed := l.sourceRuleSets[path]; !existed {
		l.sourceOrder = append(l.sourceOrder, path)
	}
	l.sourceRuleSets[path] = rs
	l.fingerprints[path] = fp
	l.loaded = buildIndex(l.sourceOrder, l.sourceRuleSets)
	return nil
}

// LoadFromString parses body as a plain-text rule set (no signing
// applies to in-memory sources) and merges it into the index under
// sourceLabel, replacing any prior source with the same label.
func (l *Loader) LoadFromString(sourceLabel, body string) error {
	rs, err := rule.ParseRuleSetYAML([]byte(body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", sourceLabel, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, existed := l.sourceRuleSets[sourceLabel]; !existed {
		l.sourceOrder = append(l.sourceOrder, sourceLabel)
	}
	l.sourceRuleSets[sourceLabel] = rs
	l.fingerprints[sourceLabel] = fingerprint([]byte(body))
	l.loaded = buildIndex(l.sourceOrder, l.sourceRuleSets)
	return nil
}

// Reload re-walks dir and atomically replaces the index. Equivalent to
// LoadFromDirectory, named separately for hot-reload call sites.
func (l *Loader) Reload(dir string) error {
	return l.LoadFromDirectory(dir)
}

func (l *Loader) loadPlainBytes(path string, data []byte) (rule.RuleSet, bool) {
	rs, err := rule.ParseRuleSetYAML(data)
	if err != nil {
		l.logger.Warn("skipping unparsable rule file", "path", path, "error", err)
		return rule.RuleSet{}, false
	}
	return rs, true
}

// loadSignedBundleBytes applies the signing-mode policy table to one
// .signed.json source's raw bytes. The bool return is false when the
// bundle was skipped per policy (not an error); a non-nil error means
// fail-closed (required=true verification failure), which the caller
// must propagate to abort startup.
func (l *Loader) loadSignedBundleBytes(path string, data []byte) (rule.RuleSet, bool, error) {
	if !l.signingConfigured {
		l.logger.Warn("signing not configured", "path", path)
		return rule.RuleSet{}, false, nil
	}
	if !l.signing.Enabled {
		l.logger.Warn("signing is disabled", "path", path)
		return rule.RuleSet{}, false, nil
	}
	required := l.signing.RequiredOrDefault()

	var bundle signing.SignedBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		wrapped := fmt.Errorf("parse signed bundle %s: %w", path, err)
		if required {
			l.logger.Error("signed bundle unreadable", "path", path, "error", err)
			return rule.RuleSet{}, false, wrapped
		}
		l.logger.Warn("signed bundle unreadable, skipping", "path", path, "error", err)
		return rule.RuleSet{}, false, nil
	}

	if err := signing.Verify(bundle, l.trustedKeys, l.signing.AllowRotation); err != nil {
		if required {
			l.logger.Error("signed bundle failed verification", "path", path, "error", err)
			return rule.RuleSet{}, false, fmt.Errorf("verify signed bundle %s: %w", path, err)
		}
		l.logger.Warn("signed bundle failed verification, skipping", "path", path, "error", err)
		return rule.RuleSet{}, false, nil
	}

	if err := signing.CheckPins(l.signing, bundle); err != nil {
		if required {
			l.logger.Error("signed bundle failed pin check", "path", path, "error", err)
			return rule.RuleSet{}, false, err
		}
		l.logger.Warn("signed bundle failed pin check, skipping", "path", path, "error", err)
		return rule.RuleSet{}, false, nil
	}

	rs, err := rule.ParseRuleSetYAML([]byte(bundle.Payload))
	if err != nil {
		if required {
			return rule.RuleSet{}, false, fmt.Errorf("parse bundle payload %s: %w", path, err)
		}
		l.logger.Warn("signed bundle payload unparsable, skipping", "path", path, "error", err)
		return rule.RuleSet{}, false, nil
	}
	return rs, true, nil
}

// buildIndex assembles allRules/globalRules/byTool from sources in
// insertion order. Every rule appears exactly once in AllRules; every
// tools-less rule appears in GlobalRules; every (tool, rule) pair with
// tool in rule.Tools appears in ByTool[tool].
func buildIndex(order []string, sourceRuleSets map[string]rule.RuleSet) *LoadedRules {
	lr := &LoadedRules{
		ByTool:  map[string][]rule.Rule{},
		Sources: append([]string{}, order...),
	}
	for _, src := range order {
		rs, ok := sourceRuleSets[src]
		if !ok {
			continue
		}
		lr.RuleSets = append(lr.RuleSets, rs)
		for _, r := range rs.Rules {
			lr.AllRules = append(lr.AllRules, r)
			if len(r.Tools) == 0 {
				lr.GlobalRules = append(lr.GlobalRules, r)
				continue
			}
			for _, tool := range r.Tools {
				lr.ByTool[tool] = append(lr.ByTool[tool], r)
			}
		}
	}
	return lr
}

// fingerprint hashes source content so repeated loads of unchanged files
// can be recognized as no-ops (LoadFromFile) without re-parsing.
func fingerprint(data []byte) uint64 {
	return xxhash.Sum64(data)
}
