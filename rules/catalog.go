package rules

import (
	"fmt"
	"regexp"

	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/sqlgen"
)

// firstCustomID is the id given to the first rule declared in the configuration.
const firstCustomID = 101

// Catalog is the ordered set of rules for one configuration.
type Catalog struct {
	rules  []*Rule
	byName map[string]*Rule
	params Params
	skip   map[string]bool
}

// NewCatalog builds the built-in rules plus the configured custom rules. Every query template
// is parsed and every pass expression compiled here, so broken rules fail before anything runs.
func NewCatalog(cfg *aggcheck.Config) (*Catalog, error) {
	c := &Catalog{
		byName: make(map[string]*Rule),
		params: ParamsFromConfig(cfg),
		skip:   make(map[string]bool),
	}

	all := builtinRules()

	custom, err := customRules(cfg.Rules.Custom)
	if err != nil {
		return nil, err
	}

	all = append(all, custom...)

	for _, r := range all {
		if err := c.add(r); err != nil {
			return nil, err
		}

		if cfg.IsWarnOnly(r.Name) {
			r.WarnOnly = true
		}

		if cfg.IsSkipped(r.Name) {
			c.skip[r.Name] = true
		}
	}

	for _, name := range cfg.Rules.WarnOnly {
		if _, ok := c.byName[name]; !ok {
			return nil, fmt.Errorf("%w: rules.warn_only: unknown rule '%s'", aggcheck.ErrConfigValidation, name)
		}
	}

	for _, name := range cfg.Rules.Skip {
		if _, ok := c.byName[name]; !ok {
			return nil, fmt.Errorf("%w: rules.skip: unknown rule '%s'", aggcheck.ErrConfigValidation, name)
		}
	}

	return c, nil
}

func (c *Catalog) add(r *Rule) error {
	if _, dup := c.byName[r.Name]; dup {
		return fmt.Errorf("%w: duplicate rule name '%s'", aggcheck.ErrConfigValidation, r.Name)
	}

	if err := sqlgen.Parse(r.Name, r.Query); err != nil {
		return fmt.Errorf("%w: rule %s: %w", aggcheck.ErrConfigValidation, r.Name, err)
	}

	pred, err := CompilePredicate(r.Pass)
	if err != nil {
		return fmt.Errorf("%w: rule %s: %w", aggcheck.ErrConfigValidation, r.Name, err)
	}

	r.predicate = pred
	c.rules = append(c.rules, r)
	c.byName[r.Name] = r

	return nil
}

// Rules returns every rule in id order.
func (c *Catalog) Rules() []*Rule { return c.rules }

// Get looks up a rule by name.
func (c *Catalog) Get(name string) (*Rule, bool) {
	r, ok := c.byName[name]
	return r, ok
}

// Params returns the parameters the rules are rendered with.
func (c *Catalog) Params() Params { return c.params }

// Selection splits the catalog into rules to run and rules to skip.
type Selection struct {
	Run     []*Rule
	Skipped []*Rule
}

// Select filters rules by a name pattern (nil matches everything). Rules that do not match are
// left out entirely; rules listed in rules.skip are reported as skipped.
func (c *Catalog) Select(pattern *regexp.Regexp) Selection {
	var sel Selection

	for _, r := range c.rules {
		if pattern != nil && !pattern.MatchString(r.Name) {
			continue
		}

		if c.skip[r.Name] {
			sel.Skipped = append(sel.Skipped, r)
			continue
		}

		sel.Run = append(sel.Run, r)
	}

	return sel
}
