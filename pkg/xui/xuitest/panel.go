// Package xuitest provides an in-process fake of the remote panel API for tests.
package xuitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/tphan267/xui-hub/pkg/models"
)

const (
	Username = "u"
	Password = "p"
)

// SampleInbounds is a single vmess inbound as returned by list-inbounds
const SampleInbounds = `[{"id":1,"remark":"r","protocol":"vmess","port":443,"enable":true,"up":100,"down":200}]`

// Panel is a fake 3x-ui panel. Sessions are issued on /login and required
// on every other route.
type Panel struct {
	*httptest.Server

	mu         sync.Mutex
	cookieName string
	status     string
	inbounds   string
	hang       bool
	loginOK    bool
	noCookie   bool
	sessions   map[string]bool
	logins     int
	calls      []string
	bodies     [][]byte
	release    chan struct{}
}

// NewPanel starts a fake panel accepting Username/Password. It is closed on test cleanup.
func NewPanel(t testing.TB) *Panel {
	t.Helper()

	p := &Panel{
		cookieName: "3x-ui",
		status:     `{"cpu":12.5,"mem":{"current":512,"total":1024},"xray":{"state":"running"}}`,
		inbounds:   SampleInbounds,
		loginOK:    true,
		sessions:   make(map[string]bool),
		release:    make(chan struct{}),
	}
	p.Server = httptest.NewServer(http.HandlerFunc(p.handle))

	t.Cleanup(func() {
		close(p.release)
		p.Server.Close()
	})
	return p
}

// Record returns a registry record pointing at the panel
func (p *Panel) Record(id, name string) *models.Server {
	hostPort := strings.TrimPrefix(p.URL, "http://")
	host, port, _ := net.SplitHostPort(hostPort)
	portNum, _ := strconv.Atoi(port)

	return &models.Server{
		ID:       id,
		Name:     name,
		Host:     host,
		Port:     portNum,
		Username: Username,
		Password: Password,
	}
}

// Input returns a create request pointing at the panel
func (p *Panel) Input(name string) models.ServerInput {
	r := p.Record("", name)
	return models.ServerInput{
		Name:     r.Name,
		Host:     r.Host,
		Port:     r.Port,
		Username: r.Username,
		Password: r.Password,
	}
}

// SetCookieName changes the name of the issued session cookie
func (p *Panel) SetCookieName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookieName = name
}

// OmitCookie makes logins succeed without issuing any cookie
func (p *Panel) OmitCookie() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.noCookie = true
}

// SetInbounds replaces the "obj" of list-inbounds
func (p *Panel) SetInbounds(obj string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbounds = obj
}

// RejectLogins makes every login answer success:false
func (p *Panel) RejectLogins() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginOK = false
}

// Hang makes every request block until the client gives up
func (p *Panel) Hang() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hang = true
}

// ExpireSessions forgets all issued sessions
func (p *Panel) ExpireSessions() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = make(map[string]bool)
}

// Logins returns the number of successful logins
func (p *Panel) Logins() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

// Calls returns "METHOD path" of every authenticated request served
func (p *Panel) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// LastBody returns the body of the last authenticated request
func (p *Panel) LastBody() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.bodies) == 0 {
		return nil
	}
	return p.bodies[len(p.bodies)-1]
}

func (p *Panel) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	hang := p.hang
	p.mu.Unlock()

	if hang {
		select {
		case <-p.release:
		case <-r.Context().Done():
		}
		return
	}

	if r.URL.Path == "/login" {
		p.handleLogin(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)

	p.mu.Lock()
	authorized := false
	for _, c := range r.Cookies() {
		if p.sessions[c.Name+"="+c.Value] {
			authorized = true
		}
	}
	if authorized {
		p.calls = append(p.calls, r.Method+" "+r.URL.Path)
		p.bodies = append(p.bodies, body)
	}
	status, inbounds := p.status, p.inbounds
	p.mu.Unlock()

	if !authorized {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/server/status":
		writeObj(w, "", status)
	case r.Method == http.MethodGet && r.URL.Path == "/panel/api/inbounds/list":
		writeObj(w, "", inbounds)
	case r.Method == http.MethodPost && r.URL.Path == "/panel/api/inbounds/add":
		writeObj(w, "Create Successfully", string(body))
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/panel/api/inbounds/update/"):
		writeObj(w, "Update Successfully", string(body))
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/panel/api/inbounds/del/"):
		id := strings.TrimPrefix(r.URL.Path, "/panel/api/inbounds/del/")
		writeObj(w, "Delete Successfully", strconv.Quote(id))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *Panel) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&creds)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loginOK || creds.Username != Username || creds.Password != Password {
		writeObj(w, "Wrong username or password", "")
		return
	}

	p.logins++
	if !p.noCookie {
		value := fmt.Sprintf("s%d", p.logins)
		p.sessions[p.cookieName+"="+value] = true
		http.SetCookie(w, &http.Cookie{Name: "lang", Value: "en-US", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: p.cookieName, Value: value, Path: "/", HttpOnly: true})
	}
	writeObj(w, "Login Successfully", "null")
}

// writeObj writes the panel envelope. An empty obj means a failed call.
func writeObj(w http.ResponseWriter, msg, obj string) {
	w.Header().Set("Content-Type", "application/json")
	if obj == "" {
		fmt.Fprintf(w, `{"success":false,"msg":%q,"obj":null}`, msg)
		return
	}
	fmt.Fprintf(w, `{"success":true,"msg":%q,"obj":%s}`, msg, obj)
}
