// Package server is the REST adapter over the terminology core: the
// lookup, validate-code, subsumes and expand operations exposed as
// JSON endpoints. The framing layer is deliberately thin - parameter
// parsing, language negotiation and provider selection all happen in the
// core packages.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/cors"

	"github.com/wardle/go-terminology/internal/logging"
	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
	"github.com/wardle/go-terminology/internal/registry"
	"github.com/wardle/go-terminology/internal/reqparams"
)

// Server serves the terminology operations over a provider registry.
type Server struct {
	registry *registry.Registry
}

// New builds a server over reg.
func New(reg *registry.Registry) *Server {
	return &Server{registry: reg}
}

// RunServer serves until the listener fails.
func RunServer(reg *registry.Registry, port int) error {
	s := New(reg)
	handler := cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST"},
	}).Handler(s.Routes())
	logging.Printf("terminology server listening on port %d", port)
	return http.ListenAndServe(":"+strconv.Itoa(port), handler)
}

// Routes wires the operation endpoints.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/CodeSystem/$lookup", &handler{s, lookup})
	mux.Handle("/CodeSystem/$validate-code", &handler{s, validateCode})
	mux.Handle("/CodeSystem/$subsumes", &handler{s, subsumes})
	mux.Handle("/ValueSet/$expand", &handler{s, expand})
	return mux
}

// result is one handler's outcome.
type result struct {
	v      interface{}
	err    error
	status int
}

func (r result) hasError() bool { return r.status >= 400 }

func (r result) error() error {
	if r.err != nil {
		return r.err
	}
	if r.hasError() {
		return errors.New(http.StatusText(r.status))
	}
	return nil
}

func ok(v interface{}) result { return result{v: v, status: http.StatusOK} }

func fail(status int, err error) result { return result{err: err, status: status} }

type handler struct {
	s       *Server
	Handler func(s *Server, r *http.Request) result
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := h.Handler(h.s, r)
	if res.hasError() {
		http.Error(w, res.error().Error(), res.status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(res.v); err != nil {
		logging.Printf("error encoding response: %v", err)
	}
}

// request pulls the operation context, parameters and provider out of
// one request.
func (s *Server) request(r *http.Request) (*opcontext.Context, *reqparams.Params, provider.Provider, error) {
	params, err := reqparams.Parse(r.URL.Query())
	if err != nil {
		return nil, nil, nil, err
	}
	ctx := opcontext.New(r.Context())
	ctx.SetHTTPLanguages(r.Header.Get("Accept-Language"))
	params.Apply(ctx)
	system := r.URL.Query().Get("system")
	if system == "" {
		system = r.URL.Query().Get("url")
	}
	if system == "" {
		return nil, nil, nil, errors.New("missing system parameter")
	}
	p, err := s.registry.Provider(ctx, system, r.URL.Query().Get("version"))
	if err != nil {
		return nil, nil, nil, err
	}
	return ctx, params, p, nil
}

func lookup(s *Server, r *http.Request) result {
	ctx, params, p, err := s.request(r)
	if err != nil {
		return fail(http.StatusBadRequest, err)
	}
	defer p.Close()
	code := r.URL.Query().Get("code")
	h, msg := p.Locate(code)
	if h == nil {
		return fail(http.StatusNotFound, errors.New(msg))
	}
	resp := map[string]interface{}{
		"name":    p.Name(),
		"version": p.Version(),
		"code":    p.Code(h),
		"display": p.Display(h, ctx),
	}
	if props := p.Properties(h, propertyNames(params)); len(props) > 0 {
		resp["property"] = props
	}
	if params.IncludeDesignations {
		d := opcontext.NewDesignations()
		p.Designations(h, ctx, d)
		resp["designation"] = d.List()
	}
	return ok(resp)
}

func propertyNames(params *reqparams.Params) []string {
	if len(params.Properties) == 0 {
		return nil
	}
	return params.Properties
}

func validateCode(s *Server, r *http.Request) result {
	ctx, _, p, err := s.request(r)
	if err != nil {
		return fail(http.StatusBadRequest, err)
	}
	defer p.Close()
	code := r.URL.Query().Get("code")
	h, msg := p.Locate(code)
	if h == nil {
		return ok(map[string]interface{}{"result": false, "message": msg})
	}
	resp := map[string]interface{}{
		"result":  true,
		"code":    p.Code(h),
		"display": p.Display(h, ctx),
	}
	if p.IsInactive(h) {
		resp["inactive"] = true
	}
	return ok(resp)
}

func subsumes(s *Server, r *http.Request) result {
	_, _, p, err := s.request(r)
	if err != nil {
		return fail(http.StatusBadRequest, err)
	}
	defer p.Close()
	outcome, err := p.SubsumesTest(r.URL.Query().Get("codeA"), r.URL.Query().Get("codeB"))
	if err != nil {
		if errors.Is(err, provider.ErrSubsumptionUnsupported) {
			return ok(map[string]interface{}{"outcome": provider.NotSubsumed})
		}
		return fail(http.StatusBadRequest, err)
	}
	return ok(map[string]interface{}{"outcome": outcome})
}

// expand runs the filter lifecycle over the provider: text via
// searchFilter, the ECL-style filters from query parameters, then a
// bounded iteration.
func expand(s *Server, r *http.Request) result {
	ctx, params, p, err := s.request(r)
	if err != nil {
		return fail(http.StatusBadRequest, err)
	}
	defer p.Close()
	if p.IsNotClosed() && !params.IncompleteOK {
		return fail(http.StatusUnprocessableEntity,
			errors.New("the value set cannot be expanded: its grammar-based code system is not enumerable"))
	}
	prep := p.GetPrepContext(true)
	defer p.FilterFinish(prep)
	if params.Filter != "" {
		if err := p.SearchFilter(prep, params.Filter, false); err != nil {
			return fail(http.StatusBadRequest, err)
		}
	}
	sets, err := p.ExecuteFilters(prep)
	if err != nil {
		return fail(http.StatusBadRequest, err)
	}
	count := params.Count
	if count < 0 {
		count = 100
	}
	type contains struct {
		System  string `json:"system"`
		Code    string `json:"code"`
		Display string `json:"display,omitempty"`
	}
	var out []contains
	total := 0
	for _, set := range sets {
		total += p.FilterSize(set)
		skipped := 0
		for {
			more, err := p.FilterMore(set)
			if err != nil {
				return fail(http.StatusBadRequest, err)
			}
			if !more || len(out) >= count {
				break
			}
			if skipped < params.Offset {
				skipped++
				continue
			}
			h := p.FilterConcept(set)
			if h == nil {
				continue
			}
			if params.ActiveOnly && p.IsInactive(h) {
				continue
			}
			out = append(out, contains{System: p.System(), Code: p.Code(h), Display: p.Display(h, ctx)})
		}
	}
	return ok(map[string]interface{}{
		"total":    total,
		"offset":   params.Offset,
		"contains": out,
	})
}
