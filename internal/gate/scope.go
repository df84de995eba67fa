package gate

import "strings"

// Scope selects the requests a gate applies to. An empty method set matches
// every method; an empty prefix set matches every path.
type Scope struct {
	Methods  []string
	Prefixes []string
}

// Matches reports whether req falls inside the scope.
func (s Scope) Matches(req *Request) bool {
	return s.matchesMethod(req.Method) && matchesPrefix(s.Prefixes, req.Path)
}

func (s Scope) matchesMethod(method string) bool {
	if len(s.Methods) == 0 {
		return true
	}
	for _, m := range s.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func matchesPrefix(prefixes []string, path string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
