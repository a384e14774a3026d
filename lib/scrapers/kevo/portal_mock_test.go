package kevo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
)

const mockAuthToken = "tok-3f9c0b"

type mockLock struct {
	id        string
	name      string
	boltState string
	// raw body served for lock.json, overrides the JSON encoding
	rawInfo string
	// status served for remote_(un)lock.json commands, defaults to 200
	commandStatus int
	// number of info reads before an accepted command takes effect;
	// 0 applies it immediately, negative means the bolt never moves
	settleAfter int

	pendingState    string
	settleCountdown int
}

// mockPortal is a scripted stand-in for mykevo.com: a login form with a
// scrapable authenticity token, a cookie session, a lock listing page
// and the per-lock JSON command endpoints.
type mockPortal struct {
	server *httptest.Server

	username string
	password string

	locks []*mockLock

	// sessions die after this many authenticated requests (0 means
	// never), simulating aggressive server-side expiry
	expireAfterUses int
	// serve the login page without the authenticity token input
	dropAuthToken bool

	signinCount int
	sessions    map[string]bool
	sessionUses map[string]int
}

func newMockPortal(username, password string, locks ...*mockLock) *mockPortal {
	p := &mockPortal{
		username: username,
		password: password,
		locks:       locks,
		sessions:    map[string]bool{},
		sessionUses: map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", p.handleLogin)
	mux.HandleFunc("/signin", p.handleSignin)
	mux.HandleFunc(locksPath, p.handleLockList)
	mux.HandleFunc(commandsPath+"/lock.json", p.handleLockInfo)
	mux.HandleFunc(commandsPath+"/remote_lock.json", p.command("Locked"))
	mux.HandleFunc(commandsPath+"/remote_unlock.json", p.command("Unlocked"))

	p.server = httptest.NewServer(mux)
	return p
}

func (p *mockPortal) close() {
	p.server.Close()
}

func (p *mockPortal) findLock(id string) *mockLock {
	for _, l := range p.locks {
		if l.id == id {
			return l
		}
	}
	return nil
}

func (p *mockPortal) handleLogin(w http.ResponseWriter, r *http.Request) {
	tokenInput := fmt.Sprintf(
		`<input type="hidden" name="authenticity_token" value="%s" />`,
		mockAuthToken,
	)
	if p.dropAuthToken {
		tokenInput = ""
	}
	fmt.Fprintf(w, `<html><body>
<form action="/signin" method="post">
%s
<input type="text" name="user[username]" />
<input type="password" name="user[password]" />
</form>
</body></html>`, tokenInput)
}

func (p *mockPortal) handleSignin(w http.ResponseWriter, r *http.Request) {
	err := r.ParseForm()
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	token := r.PostFormValue("authenticity_token")
	username := r.PostFormValue("user[username]")
	password := r.PostFormValue("user[password]")
	if token != mockAuthToken || username != p.username || password != p.password {
		// the portal re-renders the login form on bad credentials
		p.handleLogin(w, r)
		return
	}

	p.signinCount++
	session := fmt.Sprintf("session-%d", p.signinCount)
	p.sessions[session] = true
	http.SetCookie(w, &http.Cookie{Name: "_session", Value: session, Path: "/"})
	http.Redirect(w, r, locksPath, http.StatusFound)
}

// expireSessions invalidates every session the portal has handed out.
func (p *mockPortal) expireSessions() {
	for session := range p.sessions {
		p.sessions[session] = false
	}
}

func (p *mockPortal) authorized(w http.ResponseWriter, r *http.Request) bool {
	cookie, err := r.Cookie("_session")
	if err != nil || !p.sessions[cookie.Value] {
		http.Redirect(w, r, "/login", http.StatusFound)
		return false
	}
	if p.expireAfterUses > 0 {
		p.sessionUses[cookie.Value]++
		if p.sessionUses[cookie.Value] >= p.expireAfterUses {
			p.sessions[cookie.Value] = false
		}
	}
	return true
}

func (p *mockPortal) handleLockList(w http.ResponseWriter, r *http.Request) {
	if !p.authorized(w, r) {
		return
	}

	var entries strings.Builder
	for _, l := range p.locks {
		fmt.Fprintf(
			&entries,
			`<ul class="lock"><div class="lock_unlock_container" data-lock-id="%s"></div></ul>`,
			l.id,
		)
	}
	fmt.Fprintf(w, `<html><body>%s</body></html>`, entries.String())
}

func (p *mockPortal) handleLockInfo(w http.ResponseWriter, r *http.Request) {
	if !p.authorized(w, r) {
		return
	}

	lock := p.findLock(r.URL.Query().Get("arguments"))
	if lock == nil {
		http.NotFound(w, r)
		return
	}
	if lock.rawInfo != "" {
		fmt.Fprint(w, lock.rawInfo)
		return
	}
	if lock.pendingState != "" && lock.settleCountdown > 0 {
		lock.settleCountdown--
		if lock.settleCountdown == 0 {
			lock.boltState = lock.pendingState
			lock.pendingState = ""
		}
	}
	json.NewEncoder(w).Encode(map[string]string{
		"id":         lock.id,
		"name":       lock.name,
		"bolt_state": lock.boltState,
	})
}

func (p *mockPortal) command(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !p.authorized(w, r) {
			return
		}

		lock := p.findLock(r.URL.Query().Get("arguments"))
		if lock == nil {
			http.NotFound(w, r)
			return
		}
		if lock.commandStatus != 0 && lock.commandStatus != 200 {
			http.Error(w, "command failed", lock.commandStatus)
			return
		}
		switch {
		case lock.settleAfter > 0:
			lock.pendingState = target
			lock.settleCountdown = lock.settleAfter
		case lock.settleAfter == 0:
			lock.boltState = target
		}
		fmt.Fprint(w, `{}`)
	}
}
