// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"bytes"
	"crypto/subtle"
	"embed"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"time"
)

// Default practice-site credentials.
const (
	DefaultPracticeUser     = "rahulshettyacademy"
	DefaultPracticePassword = "Learning@830$3mK2"
)

const (
	loginPath     = "/loginpagePractise/"
	shopPath      = "/angularpractice/shop"
	logoutPath    = "/angularpractice/logout"
	documentsPath = "/documents-request"

	// DocumentsTitle is the title of the page opened by the login page's
	// blinking link.
	DocumentsTitle = "RS Academy - Documents request"

	incorrectLogin = "Incorrect username/password."
)

//go:embed practice
var practiceFS embed.FS

var practiceTemplates = template.Must(template.ParseFS(practiceFS, "practice/*.html"))

type option struct {
	Value string
	Label string
}

var occupations = []option{
	{"stud", "Student"},
	{"teach", "Teacher"},
	{"consult", "Consultant"},
}

type product struct {
	Name  string
	Price string
}

var products = []product{
	{"iphone X", "$24.99"},
	{"Samsung Note 8", "$24.99"},
	{"Nokia Edge", "$24.99"},
	{"Blackberry", "$24.99"},
}

type loginView struct {
	Error        string
	Username     string
	Role         string
	Occupation   string
	Terms        bool
	Occupations  []option
	HintUser     string
	HintPassword string
}

// practiceSite serves the login practice pages.
type practiceSite struct {
	user     string
	password string
	cookie   string
	ttl      time.Duration
	signer   *Signer
	debugf   func(string, ...any)
}

func newPracticeSite(opts Options, signer *Signer, debugf func(string, ...any)) *practiceSite {
	s := &practiceSite{
		user:     opts.PracticeUser,
		password: opts.PracticePassword,
		cookie:   opts.authCookieName(),
		ttl:      opts.SessionTTL,
		signer:   signer,
		debugf:   debugf,
	}
	if s.user == "" {
		s.user = DefaultPracticeUser
	}
	if s.password == "" {
		s.password = DefaultPracticePassword
	}
	return s
}

func (s *practiceSite) register(mux *http.ServeMux) {
	static, err := fs.Sub(practiceFS, "practice")
	if err != nil {
		log.Fatal(err)
	}
	mux.Handle("GET /practice/", contentTypeMiddleware(http.StripPrefix("/practice/", http.FileServerFS(static))))
	mux.HandleFunc("GET "+loginPath, s.handleLoginPage)
	mux.HandleFunc("POST "+loginPath, s.handleLogin)
	mux.HandleFunc("GET "+shopPath, s.handleShop)
	mux.HandleFunc("POST "+logoutPath, s.handleLogout)
	mux.HandleFunc("GET "+documentsPath, s.handleDocuments)
}

func (s *practiceSite) loginView() loginView {
	return loginView{
		Role:         "admin",
		Occupation:   "stud",
		Occupations:  occupations,
		HintUser:     s.user,
		HintPassword: s.password,
	}
}

func (s *practiceSite) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "login.html", s.loginView())
}

func (s *practiceSite) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	view := s.loginView()
	view.Username = r.PostForm.Get("username")
	if role := r.PostForm.Get("radio"); role == "user" {
		view.Role = role
	}
	if occ := r.PostForm.Get("occupation"); occ != "" {
		view.Occupation = occ
	}
	view.Terms = r.PostForm.Get("terms") != ""

	password := r.PostForm.Get("password")
	userOK := subtle.ConstantTimeCompare([]byte(view.Username), []byte(s.user)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	if !userOK || !passOK {
		s.debugf("practice login rejected for %s", maskEmail(view.Username))
		view.Error = incorrectLogin
		render(w, http.StatusOK, "login.html", view)
		return
	}

	token, err := s.signer.Issue(view.Username, s.ttl)
	if err != nil {
		log.Printf("Issuing session token: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	s.debugf("practice login accepted for %s", maskEmail(view.Username))
	http.Redirect(w, r, shopPath, http.StatusSeeOther)
}

func (s *practiceSite) handleShop(w http.ResponseWriter, r *http.Request) {
	user := getUserID(r)
	if user == "" {
		http.Redirect(w, r, loginPath, http.StatusFound)
		return
	}
	render(w, http.StatusOK, "shop.html", map[string]any{
		"User":     user,
		"Products": products,
	})
}

func (s *practiceSite) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:    s.cookie,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	})
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func (s *practiceSite) handleDocuments(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "documents.html", map[string]any{
		"Title": DocumentsTitle,
		"Email": "mentor@rahulshettyacademy.com",
	})
}

// render executes the template into a buffer first so that a template error
// still produces a clean 500.
func render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := practiceTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("Rendering %s: %v", name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
