// Package capture runs a reverse proxy in front of the marketplace API and
// snapshots the session headers from passing GraphQL requests, so the rest
// of the service can call the API as the user.
package capture

import (
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
)

// Only these headers are persisted from observed requests; everything else
// (cookies, browser fingerprint headers) is dropped.
var capturedHeaders = map[string]struct{}{
	"authorization":  {},
	"ubi-appid":      {},
	"ubi-sessionid":  {},
	"content-type":   {},
	"ubi-localecode": {},
}

type Store interface {
	SetCredentials(headers map[string]string) error
}

type Proxy struct {
	store Store
	proxy *httputil.ReverseProxy
}

// New builds a proxy that forwards everything to target and snapshots
// session headers from POSTs against a graphql path.
func New(store Store, target string) (*Proxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	p := &Proxy{store: store}

	rp := httputil.NewSingleHostReverseProxy(u)
	director := rp.Director
	rp.Director = func(r *http.Request) {
		p.observe(r)
		director(r)
		r.Host = u.Host
	}
	p.proxy = rp
	return p, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.proxy.ServeHTTP(w, r)
}

// observe overwrites the stored snapshot on every matching request, so the
// freshest session always wins even while a token rotates.
func (p *Proxy) observe(r *http.Request) {
	if r.Method != http.MethodPost || !strings.Contains(r.URL.Path, "graphql") {
		return
	}
	snapshot := Snapshot(r.Header)
	if len(snapshot) == 0 {
		return
	}
	if err := p.store.SetCredentials(snapshot); err != nil {
		log.Printf("[CAPTURE] persisting session headers failed: %v", err)
		return
	}
	log.Println("[CAPTURE] session headers refreshed")
}

// Snapshot extracts the allow-listed headers, lowercased.
func Snapshot(h http.Header) map[string]string {
	out := make(map[string]string)
	for name, values := range h {
		key := strings.ToLower(name)
		if _, ok := capturedHeaders[key]; !ok {
			continue
		}
		if len(values) > 0 {
			out[key] = values[0]
		}
	}
	return out
}
