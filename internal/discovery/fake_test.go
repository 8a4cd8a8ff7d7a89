package discovery

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// fakePeripheral is an httptest server answering the peripheral protocol.
type fakePeripheral struct {
	srv *httptest.Server

	mu           sync.Mutex
	info         any
	infoStatus   int
	registerCode int
	registered   []Registration
	calls        map[string][]map[string]any
}

func newFakePeripheral(t *testing.T, info any) *fakePeripheral {
	t.Helper()
	f := &fakePeripheral{
		info:         info,
		infoStatus:   http.StatusOK,
		registerCode: http.StatusOK,
		calls:        make(map[string][]map[string]any),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/device/info", onlyMethod(http.MethodGet, func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		status, body := f.infoStatus, f.info
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		switch b := body.(type) {
		case string:
			_, _ = w.Write([]byte(b))
		default:
			_ = json.NewEncoder(w).Encode(b)
		}
	}))
	mux.HandleFunc("/register", onlyMethod(http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
		var reg Registration
		_ = json.NewDecoder(r.Body).Decode(&reg)
		f.mu.Lock()
		f.registered = append(f.registered, reg)
		code := f.registerCode
		f.mu.Unlock()
		w.WriteHeader(code)
	}))
	for _, p := range []string{pathControlWavelength, pathChamberStart, pathChamberStop, pathChamberMaterial} {
		path := p
		mux.HandleFunc(path, onlyMethod(http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
			body := map[string]any{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			f.calls[path] = append(f.calls[path], body)
			f.mu.Unlock()
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}))
	}

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// onlyMethod restricts h to one HTTP method, answering 405 otherwise, as a
// "METHOD /path" ServeMux pattern would.
func onlyMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func (f *fakePeripheral) hostPort(t *testing.T) (string, int) {
	t.Helper()
	return hostPortOf(t, f.srv)
}

func (f *fakePeripheral) setInfoStatus(code int) {
	f.mu.Lock()
	f.infoStatus = code
	f.mu.Unlock()
}

func (f *fakePeripheral) setRegisterStatus(code int) {
	f.mu.Lock()
	f.registerCode = code
	f.mu.Unlock()
}

// newStubServer starts a server answering every request with h.
func newStubServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// hostPortOf splits a test server address.
func hostPortOf(t *testing.T, srv *httptest.Server) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi: %v", err)
	}
	return host, port
}

func (f *fakePeripheral) registrations() []Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Registration(nil), f.registered...)
}

func (f *fakePeripheral) callsTo(path string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.calls[path]...)
}
