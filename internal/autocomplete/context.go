// Package autocomplete implements caret-context classification and
// ranked suggestions over a partial query string (spec.md §4.9),
// backed by an invalidatable cache over internal/catalog's
// enumeration helpers. This is a spec-original component: no single
// teacher file implements a query-autocomplete provider, so its
// sync.RWMutex-guarded-cache shape follows the guarded-mutable-state
// idiom used throughout services/encryption_service.go (SPEC_FULL.md
// §5.9).
package autocomplete

import "strings"

// ContextKind classifies where the caret sits within a partial query.
type ContextKind int

const (
	// StartOfTerm is an empty or whitespace-bounded position: any term
	// form is valid.
	StartOfTerm ContextKind = iota
	// PartialKeyword is mid-word with no operator yet typed: could still
	// become a reserved keyword, a metadata key, or a bare word.
	PartialKeyword
	// AfterOperator follows one of ':','=','>','<','>=','<=' after any
	// key, reserved or not; Context.Key names that key.
	AfterOperator
	// AfterBang follows '!' awaiting a path.
	AfterBang
	// AfterRelationPath follows '!path:' awaiting a relation name.
	AfterRelationPath
)

// Context describes the token under the caret and what kind of value
// is expected there.
type Context struct {
	Kind   ContextKind
	Key    string // set when Kind == AfterOperator
	Prefix string // the partial text to match suggestions against
}

func isBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '|':
		return true
	}
	return false
}

var compareOps = []string{">=", "<=", ":", "=", ">", "<"}

// Classify identifies the token under caret in src and determines what
// kind of suggestion applies there. It is a small hand-rolled scanner
// rather than a reuse of internal/query/lexer: the caret routinely
// sits mid-token (an unterminated quote, a dangling operator), states
// the lexer's tokenizer is not built to recover from.
func Classify(src string, caret int) Context {
	if caret < 0 {
		caret = 0
	}
	if caret > len(src) {
		caret = len(src)
	}
	head := src[:caret]

	i := len(head)
	for i > 0 && !isBoundary(head[i-1]) {
		i--
	}
	token := head[i:]

	if token == "" {
		return Context{Kind: StartOfTerm}
	}

	if strings.HasPrefix(token, "!") {
		rest := token[1:]
		if idx := strings.IndexByte(rest, ':'); idx >= 0 {
			return Context{Kind: AfterRelationPath, Prefix: rest[idx+1:]}
		}
		return Context{Kind: AfterBang, Prefix: rest}
	}

	stripped := token
	for len(stripped) > 0 && (stripped[0] == '-' || stripped[0] == '^' || stripped[0] == '%') {
		stripped = stripped[1:]
	}
	if stripped == "" {
		return Context{Kind: StartOfTerm}
	}

	for _, op := range compareOps {
		if idx := strings.Index(stripped, op); idx > 0 {
			return Context{Kind: AfterOperator, Key: stripped[:idx], Prefix: stripped[idx+len(op):]}
		}
	}

	return Context{Kind: PartialKeyword, Prefix: stripped}
}
