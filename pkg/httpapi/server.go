// Package httpapi exposes the control channel over HTTP on a unix socket.
// Each endpoint translates one request body into one client call; the
// blocking call semantics of the channel map directly onto the
// request-response cycle.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/embervm/ember/internal/errx"
	"github.com/embervm/ember/pkg/api"
	"github.com/embervm/ember/pkg/config"
	"github.com/embervm/ember/pkg/logging"
)

const apiPrefix = "/api/v1/"

type Server struct {
	client  *api.Client
	emitter *logging.Emitter
	srv     *http.Server
}

func NewServer(client *api.Client, emitter *logging.Emitter) *Server {
	s := &Server{client: client, emitter: emitter}
	s.srv = &http.Server{Handler: s.Handler()}
	return s
}

// Handler builds the route table. Exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("PUT "+apiPrefix+"vm.create", s.vmCreate)
	mux.HandleFunc("PUT "+apiPrefix+"vm.boot", s.action(s.client.VmBoot))
	mux.HandleFunc("PUT "+apiPrefix+"vm.delete", s.action(s.client.VmDelete))
	mux.HandleFunc("PUT "+apiPrefix+"vm.shutdown", s.action(s.client.VmShutdown))
	mux.HandleFunc("PUT "+apiPrefix+"vm.reboot", s.action(s.client.VmReboot))
	mux.HandleFunc("GET "+apiPrefix+"vm.info", s.vmInfo)
	mux.HandleFunc("GET "+apiPrefix+"vmm.ping", s.vmmPing)
	mux.HandleFunc("PUT "+apiPrefix+"vmm.shutdown", s.action(s.client.VmmShutdown))
	mux.HandleFunc("PUT "+apiPrefix+"vm.add-device", decodeInto(s, s.client.VmAddDevice))
	mux.HandleFunc("PUT "+apiPrefix+"vm.remove-device", decodeInto(s, s.client.VmRemoveDevice))
	mux.HandleFunc("PUT "+apiPrefix+"vm.add-disk", decodeInto(s, s.client.VmAddDisk))
	mux.HandleFunc("PUT "+apiPrefix+"vm.add-fs", decodeInto(s, s.client.VmAddFs))
	mux.HandleFunc("PUT "+apiPrefix+"vm.add-pmem", decodeInto(s, s.client.VmAddPmem))
	mux.HandleFunc("PUT "+apiPrefix+"vm.add-net", decodeInto(s, s.client.VmAddNet))
	mux.HandleFunc("PUT "+apiPrefix+"vm.add-vsock", decodeInto(s, s.client.VmAddVsock))

	return s.logRequests(mux)
}

// ListenUnix creates the control socket, replacing a stale one left over
// from a previous run.
func ListenUnix(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errx.Wrap(ErrListenSocket, err)
	}
	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errx.Wrap(ErrListenSocket, err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		_ = ln.Close()
		return nil, errx.Wrap(ErrListenSocket, err)
	}
	return ln, nil
}

// Serve blocks serving the listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	err := s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) vmCreate(w http.ResponseWriter, r *http.Request) {
	var cfg config.Vm
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, errx.Wrap(ErrDecodeRequest, err))
		return
	}
	s.respond(w, s.client.VmCreate(config.NewHandle(&cfg)))
}

func (s *Server) vmInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.client.VmInfo()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) vmmPing(w http.ResponseWriter, r *http.Request) {
	pong, err := s.client.VmmPing()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pong)
}

// action adapts a payload-less client call to a handler.
func (s *Server) action(call func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, call())
	}
}

// decodeInto adapts a client call taking one JSON-decodable payload.
func decodeInto[T any](s *Server, call func(*T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload T
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.writeError(w, errx.Wrap(ErrDecodeRequest, err))
			return
		}
		s.respond(w, call(&payload))
	}
}

func (s *Server) respond(w http.ResponseWriter, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), &errorBody{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps channel errors onto HTTP statuses. Transport failures
// mean the dispatcher is gone or unreachable, hence 503.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrDecodeRequest),
		errors.Is(err, api.ErrVmMissingConfig):
		return http.StatusBadRequest
	case errors.Is(err, api.ErrVmNotCreated):
		return http.StatusNotFound
	case errors.Is(err, api.ErrVmAlreadyCreated),
		errors.Is(err, api.ErrVmNotBooted):
		return http.StatusConflict
	case errors.Is(err, api.ErrRequestSend),
		errors.Is(err, api.ErrResponseRecv),
		errors.Is(err, api.ErrNotifierWrite):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if s.emitter != nil {
			_ = s.emitter.Emit(logging.EventHTTPRequest,
				r.Method+" "+r.URL.Path,
				&logging.HTTPRequestData{
					Method:     r.Method,
					Path:       r.URL.Path,
					StatusCode: rec.status,
					DurationMS: time.Since(start).Milliseconds(),
				})
		}
	})
}
