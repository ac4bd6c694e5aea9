package scope

import "strings"

// Wildcard is the universal scope token granting every topic.
const Wildcard = "*"

// Set is an ordered, immutable collection of scope tokens. Tokens are
// compared case-sensitively. A Set is safe to share across goroutines.
type Set struct {
	tokens []string
	index  map[string]struct{}
}

// New builds a Set from the given tokens, preserving first-occurrence order
// and dropping empty strings and duplicates.
func New(tokens ...string) Set {
	s := Set{index: make(map[string]struct{}, len(tokens))}
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, ok := s.index[tok]; ok {
			continue
		}
		s.index[tok] = struct{}{}
		s.tokens = append(s.tokens, tok)
	}
	return s
}

// Parse splits a space-separated scope string into a Set.
func Parse(raw string) Set {
	return New(strings.Fields(raw)...)
}

// Len returns the number of distinct tokens.
func (s Set) Len() int { return len(s.tokens) }

// List returns the tokens in construction order. The returned slice is a copy.
func (s Set) List() []string {
	if len(s.tokens) == 0 {
		return nil
	}
	out := make([]string, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// String renders the set as a space-separated scope string.
func (s Set) String() string { return strings.Join(s.tokens, " ") }

// Contains reports exact membership of a single token.
func (s Set) Contains(token string) bool {
	_, ok := s.index[token]
	return ok
}

// Grants reports whether the set allows access to topic. A topic is granted
// when the set holds the universal wildcard, the topic itself, or the topic's
// subtree wildcard "topic/*". Namespaced topics of the form "ns:resource" are
// additionally granted by the namespace wildcard "ns:*".
func (s Set) Grants(topic string) bool {
	if topic == "" {
		return false
	}
	if s.Contains(Wildcard) || s.Contains(topic) || s.Contains(topic+"/*") {
		return true
	}
	if ns, _, ok := strings.Cut(topic, ":"); ok {
		return s.Contains(ns + ":" + Wildcard)
	}
	return false
}

// GrantsAny reports whether at least one of the topics is granted.
func (s Set) GrantsAny(topics ...string) bool {
	for _, topic := range topics {
		if s.Grants(topic) {
			return true
		}
	}
	return false
}

// ResourcesUnder returns, in set order, the suffixes r of every member of the
// form prefix+":"+r. It recovers a client's own resource vocabulary from a
// namespaced scope. An empty prefix yields nil.
func (s Set) ResourcesUnder(prefix string) []string {
	if prefix == "" {
		return nil
	}
	full := prefix + ":"
	var out []string
	for _, tok := range s.tokens {
		if strings.HasPrefix(tok, full) {
			out = append(out, tok[len(full):])
		}
	}
	return out
}
