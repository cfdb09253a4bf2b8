package arche

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/huhn511/arche/config"
	"github.com/huhn511/arche/data"
	"github.com/huhn511/arche/localization"
	"github.com/huhn511/arche/workerpool"
)

const (
	defaultHTTPReadTimeoutSeconds  = 15
	defaultHTTPWriteTimeoutSeconds = 15
	defaultHTTPIdleTimeoutSeconds  = 60
)

// httpDriver owns the http.Server lifecycle.
type httpDriver struct {
	errorGroup *errgroup.Group
	httpServer *http.Server
}

func newHTTPDriver(ctx context.Context) *httpDriver {
	errorGroup, _ := errgroup.WithContext(ctx)

	return &httpDriver{
		errorGroup: errorGroup,
		httpServer: &http.Server{
			BaseContext: func(_ net.Listener) context.Context {
				return ctx
			},
			ReadTimeout:  defaultHTTPReadTimeoutSeconds * time.Second,
			WriteTimeout: defaultHTTPWriteTimeoutSeconds * time.Second,
			IdleTimeout:  defaultHTTPIdleTimeoutSeconds * time.Second,
		},
	}
}

func (hd *httpDriver) ListenAndServe(addr string, h http.Handler) error {
	hd.httpServer.Addr = addr
	hd.httpServer.Handler = h

	hd.errorGroup.Go(hd.httpServer.ListenAndServe)
	return hd.errorGroup.Wait()
}

func (hd *httpDriver) Shutdown(ctx context.Context) error {
	return hd.httpServer.Shutdown(ctx)
}

type translationResponse struct {
	Lang    string `json:"lang"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type localeRequest struct {
	Lang    string `json:"lang"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) newRouter(_ context.Context) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/translate", s.handleTranslate)
	mux.HandleFunc("PUT /v1/locales", s.handlePutLocale)
	mux.HandleFunc("DELETE /v1/locales", s.handleDeleteLocale)
	mux.HandleFunc("GET /v1/locales", s.handleListLocales)
	mux.HandleFunc("GET /v1/languages", s.handleLanguages)
	mux.HandleFunc("GET /v1/missing", s.handleMissing)

	return mux
}

// storeContext bounds store-bound work so connection pool exhaustion
// surfaces as a timeout instead of hanging the request.
func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := config.DefaultDatabaseRequestTimeout
	if cfg, ok := s.configuration.(config.ConfigurationDatabase); ok {
		timeout = cfg.GetDatabaseRequestTimeout()
	}
	return context.WithTimeout(ctx, timeout)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeStoreError maps datastore failures onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case data.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case data.ErrorIsConflict(err):
		writeError(w, http.StatusConflict, "conflicting entry exists")
	case data.ErrorIsTimeout(err):
		writeError(w, http.StatusGatewayTimeout, "datastore timeout")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": s.Name()})
}

// handleTranslate resolves one message code. It always answers 200 with
// a displayable string, missing translations echo the code back.
func (s *Service) handleTranslate(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "code query parameter is required")
		return
	}

	languages := localization.ExtractLanguageFromHTTPRequest(r)
	lang := ""
	if len(languages) > 0 {
		lang = languages[0]
	}

	ctx := localization.ToContext(r.Context(), languages)
	message := s.localeManager.Resolve(ctx, lang, code)

	writeJSON(w, http.StatusOK, translationResponse{
		Lang:    localization.NormalizeLang(lang),
		Code:    code,
		Message: message,
	})
}

func (s *Service) handlePutLocale(w http.ResponseWriter, r *http.Request) {
	var req localeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := s.storeContext(r.Context())
	defer cancel()

	entry, err := s.localeManager.Put(ctx, req.Lang, req.Code, req.Message)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, translationResponse{
		Lang:    entry.Lang,
		Code:    entry.Code,
		Message: entry.Message,
	})
}

func (s *Service) handleDeleteLocale(w http.ResponseWriter, r *http.Request) {
	lang := r.URL.Query().Get("lang")
	code := r.URL.Query().Get("code")
	if lang == "" || code == "" {
		writeError(w, http.StatusBadRequest, "lang and code query parameters are required")
		return
	}

	ctx, cancel := s.storeContext(r.Context())
	defer cancel()

	if err := s.localeManager.Delete(ctx, lang, code); err != nil {
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListLocales streams every entry for a language as a JSON array.
func (s *Service) handleListLocales(w http.ResponseWriter, r *http.Request) {
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		writeError(w, http.StatusBadRequest, "lang query parameter is required")
		return
	}

	ctx, cancel := s.storeContext(r.Context())
	defer cancel()

	pipe, err := s.localeManager.ListByLang(ctx, lang)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var entries []translationResponse
	err = workerpool.ConsumeResultStream(ctx, pipe, func(batch []*data.Locale) {
		for _, entry := range batch {
			entries = append(entries, translationResponse{
				Lang:    entry.Lang,
				Code:    entry.Code,
				Message: entry.Message,
			})
		}
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if entries == nil {
		entries = []translationResponse{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Service) handleLanguages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r.Context())
	defer cancel()

	languages, err := s.localeManager.Languages(ctx)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if languages == nil {
		languages = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"languages": languages})
}

// handleMissing reports the translations resolve could not find, with
// occurrence counts, so gaps can be filled.
func (s *Service) handleMissing(w http.ResponseWriter, _ *http.Request) {
	if s.recorder == nil {
		writeJSON(w, http.StatusOK, map[string]int64{})
		return
	}
	writeJSON(w, http.StatusOK, s.recorder.Snapshot())
}
