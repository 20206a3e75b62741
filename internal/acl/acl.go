// Package acl decides per request whether authentication is required and
// whether the caller may proceed. Permissions are boolean expr-lang predicates
// grouped by role and loaded from a YAML file:
//
//	permissions:
//	  - role: $unauthenticated
//	    predicate: method == "GET" && db == "public"
//	  - role: editors
//	    predicate: method in ["GET", "PUT", "PATCH"] && db == "docs"
package acl

import (
	"fmt"
	"os"
	"sort"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"github.com/gogotex/docstore/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Unauthenticated is the pseudo-role whose predicates apply to anonymous
// callers and mark requests that need no authentication.
const Unauthenticated = "$unauthenticated"

// Request is the environment predicates are evaluated against.
type Request struct {
	Method     string   `expr:"method"`
	Path       string   `expr:"path"`
	DB         string   `expr:"db"`
	Collection string   `expr:"collection"`
	ID         string   `expr:"id"`
	User       string   `expr:"user"`
	Roles      []string `expr:"roles"`
	Remote     string   `expr:"remote"`
}

func (r Request) authenticated() bool { return r.User != "" }

// Rule grants role access to every request matching Predicate.
type Rule struct {
	Role      string `yaml:"role"`
	Predicate string `yaml:"predicate"`
}

type file struct {
	Permissions []Rule `yaml:"permissions"`
}

// RuleError reports a rule that could not be compiled.
type RuleError struct {
	Role      string
	Predicate string
	Err       error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("acl: role %q predicate %q: %v", e.Role, e.Predicate, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

type predicate struct {
	src     string
	program *exprvm.Program
}

// Engine evaluates compiled permissions. It is immutable once built and safe
// for concurrent use.
type Engine struct {
	byRole map[string][]predicate
}

// New compiles rules. Every predicate must evaluate to a boolean.
func New(rules []Rule) (*Engine, error) {
	e := &Engine{byRole: make(map[string][]predicate)}
	for _, r := range rules {
		if r.Role == "" {
			return nil, &RuleError{Role: r.Role, Predicate: r.Predicate, Err: fmt.Errorf("role must not be empty")}
		}
		if r.Predicate == "" {
			return nil, &RuleError{Role: r.Role, Predicate: r.Predicate, Err: fmt.Errorf("predicate must not be empty")}
		}
		program, err := exprlang.Compile(r.Predicate, exprlang.Env(Request{}), exprlang.AsBool())
		if err != nil {
			return nil, &RuleError{Role: r.Role, Predicate: r.Predicate, Err: err}
		}
		e.byRole[r.Role] = append(e.byRole[r.Role], predicate{src: r.Predicate, program: program})
	}
	return e, nil
}

// Parse builds an Engine from YAML.
func Parse(data []byte) (*Engine, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("acl: parse: %w", err)
	}
	return New(f.Permissions)
}

// Load reads and compiles the ACL file at path.
func Load(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("acl: read %s: %w", path, err)
	}
	return Parse(data)
}

// Roles lists the roles that have at least one permission.
func (e *Engine) Roles() []string {
	out := make([]string, 0, len(e.byRole))
	for r := range e.byRole {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// IsAuthenticationRequired is false only when an $unauthenticated predicate
// matches the request.
func (e *Engine) IsAuthenticationRequired(r Request) bool {
	ps, ok := e.byRole[Unauthenticated]
	if !ok {
		return true
	}
	return !e.anyMatch(Unauthenticated, ps, r)
}

// IsAllowed reports whether any predicate of the caller's roles matches.
// Anonymous callers are checked against $unauthenticated.
func (e *Engine) IsAllowed(r Request) bool {
	if !r.authenticated() {
		return e.anyMatch(Unauthenticated, e.byRole[Unauthenticated], r)
	}
	for _, role := range r.Roles {
		if e.anyMatch(role, e.byRole[role], r) {
			return true
		}
	}
	return false
}

func (e *Engine) anyMatch(role string, ps []predicate, r Request) bool {
	for _, p := range ps {
		out, err := exprlang.Run(p.program, r)
		if err != nil {
			logger.Warnf("acl: role %q predicate %q failed: %v", role, p.src, err)
			continue
		}
		if ok, _ := out.(bool); ok {
			return true
		}
	}
	return false
}
