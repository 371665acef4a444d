package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/logging"
)

// Upstreams are the services the gateway routes to.
type Upstreams struct {
	Patient *url.URL
	Admin   *url.URL
}

// ParseUpstreams validates the patient and admin base URLs.
func ParseUpstreams(patient, admin string) (Upstreams, error) {
	p, err := parseUpstream(patient)
	if err != nil {
		return Upstreams{}, fmt.Errorf("patient upstream: %w", err)
	}
	a, err := parseUpstream(admin)
	if err != nil {
		return Upstreams{}, fmt.Errorf("admin upstream: %w", err)
	}
	return Upstreams{Patient: p, Admin: a}, nil
}

func parseUpstream(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return u, nil
}

// NewRouter proxies /api/admin/* to the admin service and every other /api/* path to the
// patient service, with the /api prefix removed.
func NewRouter(up Upstreams, env, version string) http.Handler {
	r := chi.NewRouter()

	r.Use(api.RequestIDMiddleware)
	r.Use(api.LoggingMiddleware)
	r.Use(middleware.Recoverer)

	health := api.NewHealthHandler(nil, nil, env, version)
	r.Get("/health/live", health.Liveness)

	admin := http.StripPrefix("/api", newProxy(up.Admin, "admin"))
	patient := http.StripPrefix("/api", newProxy(up.Patient, "patient"))

	r.Handle("/api/admin", admin)
	r.Handle("/api/admin/*", admin)
	r.Handle("/api/*", patient)

	return r
}

func newProxy(target *url.URL, name string) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if id := api.GetRequestID(pr.In.Context()); id != "" {
				pr.Out.Header.Set(api.RequestIDHeader, id)
			}
		},
		// The gateway already set the request ID on the response.
		ModifyResponse: func(resp *http.Response) error {
			resp.Header.Del(api.RequestIDHeader)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logging.FromContext(r.Context()).Error().Err(err).
				Str("upstream", name).
				Str("path", r.URL.Path).
				Msg("upstream request failed")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{
				Error:   "bad_gateway",
				Details: name + " service unavailable",
			})
		},
	}
}
