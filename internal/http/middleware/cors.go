package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// corsPolicy separa as origens permitidas em correspondências exatas e
// sufixos de wildcard (entradas que começam com "*.").
type corsPolicy struct {
	exact    map[string]struct{}
	suffixes []string
}

func newCORSPolicy(origins []string) *corsPolicy {
	p := &corsPolicy{exact: make(map[string]struct{}, len(origins))}
	for _, entry := range origins {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "*.") {
			p.suffixes = append(p.suffixes, strings.ToLower(strings.TrimPrefix(entry, "*")))
			continue
		}
		p.exact[entry] = struct{}{}
	}
	return p
}

func (p *corsPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range p.suffixes {
		// O sufixo guarda o ponto inicial, então o domínio raiz não casa.
		if strings.HasSuffix(host, suffix) && host != strings.TrimPrefix(suffix, ".") {
			return true
		}
	}
	return false
}

// CORS autoriza origens listadas em ALLOW_ORIGINS, por igualdade ou por
// wildcard de subdomínio (*.dominio). Preflights respondem 204.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newCORSPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); policy.allows(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
