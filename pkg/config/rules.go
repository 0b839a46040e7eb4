package config

import (
	"fmt"

	"github.com/wirecache/wirecache/pkg/router"
	"github.com/wirecache/wirecache/pkg/strategy"
)

// RouterRules converts the configured routing table into router rules and
// validates it: every strategy kind must be known and the table must end in
// a wildcard default.
func (c *Config) RouterRules() ([]router.Rule, error) {
	rules := make([]router.Rule, 0, len(c.Routing))
	for i, rc := range c.Routing {
		kind := strategy.Kind(rc.Strategy)
		if !kind.Valid() {
			return nil, fmt.Errorf("rule %q (#%d): unknown strategy %q", rc.Name, i+1, rc.Strategy)
		}

		destinations := make([]strategy.Destination, len(rc.Destinations))
		for j, d := range rc.Destinations {
			destinations[j] = strategy.Destination(d)
		}

		rules = append(rules, router.Rule{
			Name:           rc.Name,
			Destinations:   destinations,
			PathPattern:    rc.PathPattern,
			Extensions:     rc.Extensions,
			Strategy:       kind,
			Namespace:      rc.Namespace,
			MaxEntries:     rc.MaxEntries,
			MaxAge:         rc.MaxAge,
			NetworkTimeout: rc.NetworkTimeout,
		})
	}

	if err := router.ValidateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}
