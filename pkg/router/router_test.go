package router

import (
	"net/http"
	"testing"

	"github.com/wirecache/wirecache/pkg/strategy"
)

func testRules() []Rule {
	return []Rule{
		{
			Name:       "styles",
			Extensions: []string{"css"},
			Strategy:   strategy.KindCacheFirst,
			Namespace:  "static",
		},
		{
			Name:        "api",
			PathPattern: "/api/*",
			Strategy:    strategy.KindNetworkFirst,
			Namespace:   "api",
		},
		{
			Name:         "images",
			Destinations: []strategy.Destination{strategy.DestImage},
			Strategy:     strategy.KindStaleWhileRevalidate,
			Namespace:    "images",
		},
		{
			Name:      "default",
			Strategy:  strategy.KindNetworkFirst,
			Namespace: "misc",
		},
	}
}

func get(url string, dest strategy.Destination) *strategy.Request {
	return &strategy.Request{Method: http.MethodGet, URL: url, Destination: dest}
}

func TestRoute_FirstMatchWins(t *testing.T) {
	rules := testRules()

	// A .css file under /api/ matches the styles rule, declared first.
	d, err := Route(get("https://example.com/api/theme.css", strategy.DestStyle), rules, false)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if d.Action != ActionExecute || d.Rule.Name != "styles" {
		t.Errorf("expected first matching rule 'styles', got %+v", d)
	}
}

func TestRoute_ByPathPattern(t *testing.T) {
	d, err := Route(get("https://example.com/api/data", strategy.DestAPI), testRules(), false)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if d.Rule.Name != "api" || d.Rule.Strategy != strategy.KindNetworkFirst {
		t.Errorf("expected api rule, got %+v", d.Rule)
	}
}

func TestRoute_ByDestination(t *testing.T) {
	d, err := Route(get("https://example.com/media/avatar", strategy.DestImage), testRules(), false)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if d.Rule.Name != "images" {
		t.Errorf("expected images rule, got %q", d.Rule.Name)
	}
}

func TestRoute_DefaultFallback(t *testing.T) {
	d, err := Route(get("https://example.com/anything", strategy.DestOther), testRules(), false)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if d.Rule.Name != "default" {
		t.Errorf("expected wildcard default, got %q", d.Rule.Name)
	}
}

func TestRoute_NonGETOnline(t *testing.T) {
	req := &strategy.Request{Method: http.MethodPost, URL: "https://example.com/api/submit"}
	d, err := Route(req, testRules(), false)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if d.Action != ActionPassThrough {
		t.Errorf("online POST should pass through, got %v", d.Action)
	}
	if d.Rule != nil {
		t.Error("non-GET requests must never resolve to a caching rule")
	}
}

func TestRoute_NonGETOffline(t *testing.T) {
	req := &strategy.Request{Method: http.MethodPut, URL: "https://example.com/api/submit"}
	d, err := Route(req, testRules(), true)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if d.Action != ActionEnqueue {
		t.Errorf("offline PUT should route to the outbox, got %v", d.Action)
	}
}

func TestValidateRules(t *testing.T) {
	if err := ValidateRules(testRules()); err != nil {
		t.Errorf("valid table rejected: %v", err)
	}

	if err := ValidateRules(nil); err != ErrNoRules {
		t.Errorf("empty table should fail with ErrNoRules, got %v", err)
	}

	noDefault := testRules()[:2]
	if err := ValidateRules(noDefault); err != ErrNoDefaultRule {
		t.Errorf("table without wildcard default should fail, got %v", err)
	}

	badKind := testRules()
	badKind[0].Strategy = "bogus"
	if err := ValidateRules(badKind); err == nil {
		t.Error("unknown strategy kind should fail validation")
	}

	badPattern := testRules()
	badPattern[1].PathPattern = "[" // unterminated character class
	if err := ValidateRules(badPattern); err == nil {
		t.Error("invalid glob should fail validation")
	}
}

func TestRuleMatches_ExtensionCaseInsensitive(t *testing.T) {
	r := Rule{Extensions: []string{"png"}, Strategy: strategy.KindCacheFirst, Namespace: "images"}
	if !r.Matches(get("https://example.com/logo.PNG", strategy.DestImage)) {
		t.Error("extension match should be case-insensitive")
	}
}

func TestRuleMatches_ExtensionWithLeadingDot(t *testing.T) {
	r := Rule{Extensions: []string{".css", "js"}, Strategy: strategy.KindCacheFirst, Namespace: "static"}
	if !r.Matches(get("https://example.com/app.css", strategy.DestStyle)) {
		t.Error("dotted extension spelling should match")
	}
	if !r.Matches(get("https://example.com/app.js", strategy.DestScript)) {
		t.Error("bare extension spelling should match")
	}
	if r.Matches(get("https://example.com/app.html", strategy.DestDocument)) {
		t.Error("unlisted extension should not match")
	}
}
