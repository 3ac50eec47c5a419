package session

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// cookieJar is a cookiejar.Jar that can be emptied while requests are in
// flight.
type cookieJar struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

func newCookieJar() *cookieJar {
	j := &cookieJar{}
	j.Reset()
	return j
}

func (j *cookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)
}

func (j *cookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.jar.Cookies(u)
}

// Reset drops every cookie.
func (j *cookieJar) Reset() {
	// cookiejar.New never fails.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar = jar
}
