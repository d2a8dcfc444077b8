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
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return string(b)
}

func TestPractice_LoginPage(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + loginPath)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	for _, want := range []string{
		`<title>LoginPage Practise | Rahul Shetty Academy</title>`,
		`id="username"`,
		`id="password"`,
		`<select class="form-control"`,
		`value="consult"`,
		`value="admin" checked`,
		`value="user"`,
		`id="terms"`,
		`type="submit"`,
		`class="blinkingText" target="_blank"`,
		`style="display: none;"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected login page to contain %q", want)
		}
	}
	if csp := resp.Header.Get("Content-Security-Policy"); !strings.Contains(csp, "script-src 'self'") {
		t.Errorf("Expected CSP header, got %q", csp)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.HasPrefix(cc, "private") {
		t.Errorf("Expected private cache control, got %q", cc)
	}
}

func TestPractice_InvalidLogin(t *testing.T) {
	ts := newTestServer(t)
	client := browserClient(t)
	resp, err := client.PostForm(ts.URL+loginPath, url.Values{
		"username":   {"Pavan123"},
		"password":   {"testpwd"},
		"radio":      {"user"},
		"occupation": {"consult"},
		"terms":      {"on"},
	})
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `style="display: block;"`) || !strings.Contains(body, "Incorrect username/password.") {
		t.Errorf("Expected visible error alert, got %s", body)
	}
	if !strings.Contains(body, `value="Pavan123"`) {
		t.Errorf("Expected username to be kept")
	}
	if !strings.Contains(body, `value="user" checked`) || !strings.Contains(body, `value="consult" selected`) || !strings.Contains(body, `id="terms" name="terms" type="checkbox" checked`) {
		t.Errorf("Expected form state to be kept, got %s", body)
	}
	for _, c := range resp.Cookies() {
		if c.Name == DefaultAuthCookieName {
			t.Errorf("Expected no session cookie for invalid login")
		}
	}
}

func TestPractice_LoginAndShop(t *testing.T) {
	ts := newTestServer(t)
	client := browserClient(t)

	resp, err := client.Get(ts.URL + shopPath)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != loginPath {
		t.Errorf("Expected redirect to login, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, err = client.PostForm(ts.URL+loginPath, url.Values{
		"username": {DefaultPracticeUser},
		"password": {DefaultPracticePassword},
	})
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != shopPath {
		t.Fatalf("Expected redirect to shop, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, err = client.Get(ts.URL + shopPath)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if n := strings.Count(body, `class="card-title"><a`); n != len(products) {
		t.Errorf("Expected %d products, got %d", len(products), n)
	}
	if !strings.Contains(body, DefaultPracticeUser) {
		t.Errorf("Expected user name on shop page")
	}

	resp, err = client.PostForm(ts.URL+logoutPath, nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	readBody(t, resp)
	resp, err = client.Get(ts.URL + shopPath)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusFound {
		t.Errorf("Expected redirect after logout, got %d", resp.StatusCode)
	}
}

func TestPractice_Documents(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + documentsPath)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, "<title>"+DocumentsTitle+"</title>") {
		t.Errorf("Expected documents title, got %s", body)
	}
	if !strings.Contains(body, "mentor@rahulshettyacademy.com") {
		t.Errorf("Expected contact email")
	}
}

func TestPractice_Stylesheet(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/practice/practice.css")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	readBody(t, resp)
	if ct := resp.Header.Get("Content-Type"); ct != "text/css; charset=utf-8" {
		t.Errorf("Expected text/css, got %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.HasPrefix(cc, "public") {
		t.Errorf("Expected public cache control, got %q", cc)
	}
}
