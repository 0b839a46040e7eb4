// Package router classifies intercepted requests and picks the strategy and
// cache namespace that will answer them. Rules are evaluated in declared
// order, first match wins, and the table always ends in a wildcard default.
package router

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/wirecache/wirecache/pkg/strategy"
)

var (
	// ErrNoRules is returned when the rule table is empty.
	ErrNoRules = errors.New("rule table is empty")

	// ErrNoDefaultRule is returned when the last rule is not a wildcard.
	ErrNoDefaultRule = errors.New("last rule must be a wildcard default")
)

// Rule maps a class of requests to a strategy and a target namespace.
// A rule with no matchers is a wildcard and matches everything.
type Rule struct {
	// Name identifies the rule in logs and config errors.
	Name string

	// Destinations matches the request's destination kind. Empty matches all.
	Destinations []strategy.Destination

	// PathPattern is a glob matched against the URL path (path.Match
	// syntax, e.g. "/api/*"). Empty matches all.
	PathPattern string

	// Extensions matches the URL path's file extension, e.g. "css", "png".
	// Empty matches all.
	Extensions []string

	// Strategy selects the executor for matching requests.
	Strategy strategy.Kind

	// Namespace is the cache namespace purpose; the live version is
	// resolved by the caller at execution time.
	Namespace string

	// MaxEntries bounds the namespace after write-throughs. Zero disables.
	MaxEntries int

	// MaxAge stamps written entries with an expiry. Zero disables.
	MaxAge time.Duration

	// NetworkTimeout bounds network-first fetches. Zero disables.
	NetworkTimeout time.Duration
}

// Wildcard reports whether the rule matches every request.
func (r *Rule) Wildcard() bool {
	return len(r.Destinations) == 0 && r.PathPattern == "" && len(r.Extensions) == 0
}

// Matches reports whether the rule applies to the request. All configured
// matchers must agree; unconfigured matchers are ignored.
func (r *Rule) Matches(req *strategy.Request) bool {
	if len(r.Destinations) > 0 {
		found := false
		for _, d := range r.Destinations {
			if d == req.Destination {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	urlPath := requestPath(req.URL)

	if r.PathPattern != "" {
		ok, err := path.Match(r.PathPattern, urlPath)
		if err != nil || !ok {
			return false
		}
	}

	if len(r.Extensions) > 0 {
		ext := strings.TrimPrefix(path.Ext(urlPath), ".")
		found := false
		for _, e := range r.Extensions {
			// Config may spell extensions with or without the dot.
			if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// Validate checks the rule in isolation.
func (r *Rule) Validate() error {
	if !r.Strategy.Valid() {
		return fmt.Errorf("rule %q: unknown strategy %q", r.Name, r.Strategy)
	}
	if r.Namespace == "" {
		return fmt.Errorf("rule %q: namespace is required", r.Name)
	}
	if r.PathPattern != "" {
		// path.Match only reports pattern syntax errors at match time;
		// exercise it now so a bad config fails at load.
		if _, err := path.Match(r.PathPattern, "/"); err != nil {
			return fmt.Errorf("rule %q: invalid path pattern %q: %w", r.Name, r.PathPattern, err)
		}
	}
	return nil
}

// Action says what the worker should do with a request.
type Action int

const (
	// ActionExecute runs a caching strategy.
	ActionExecute Action = iota

	// ActionPassThrough forwards to the network untouched.
	ActionPassThrough

	// ActionEnqueue defers the write into the offline outbox.
	ActionEnqueue
)

// Decision is the routing outcome for one request.
type Decision struct {
	Action Action

	// Rule is the matched rule. Nil unless Action is ActionExecute.
	Rule *Rule
}

// ValidateRules checks the whole table: non-empty, every rule valid, and a
// wildcard default in last position so no request can fall through unmatched.
func ValidateRules(rules []Rule) error {
	if len(rules) == 0 {
		return ErrNoRules
	}
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return err
		}
	}
	if !rules[len(rules)-1].Wildcard() {
		return ErrNoDefaultRule
	}
	return nil
}

// Route resolves a request against the rule table.
//
// Pure function: first matching rule wins. Non-GET requests never reach a
// caching strategy - they are queued when the caller indicates offline mode
// and passed straight through otherwise.
func Route(req *strategy.Request, rules []Rule, offline bool) (Decision, error) {
	if req.Method != http.MethodGet {
		if offline {
			return Decision{Action: ActionEnqueue}, nil
		}
		return Decision{Action: ActionPassThrough}, nil
	}

	for i := range rules {
		if rules[i].Matches(req) {
			return Decision{Action: ActionExecute, Rule: &rules[i]}, nil
		}
	}

	// ValidateRules guarantees a wildcard default, so this is a config bug.
	return Decision{}, fmt.Errorf("no rule matched %q: %w", req.URL, ErrNoDefaultRule)
}

// requestPath extracts the path component of a request URL, tolerating
// unparseable URLs by falling back to the raw string.
func requestPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
