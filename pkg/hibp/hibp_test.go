package hibp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/passvault/passvault/pkg/vault"
)

// SHA-1("password"), a digest present in every breach corpus.
const pwnedDigest = "5BAA61E4C9B93F3F0682250B6CF8331B7EE68FD8"

func TestCheck_Compromised(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		// Real responses carry many suffixes per prefix.
		fmt.Fprintln(w, "0018A45C4D1DEF81644B54AB7F969B88D65:1")
		fmt.Fprintln(w, pwnedDigest[5:]+":3861493")
		fmt.Fprintln(w, "011053FD0102E94D6AE2F8B83D76FAF94F6:1")
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	state, err := client.Check(context.Background(), pwnedDigest)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if state != vault.BreachCompromised {
		t.Errorf("Check() = %v, want compromised", state)
	}
	if gotPath != "/range/5BAA6" {
		t.Errorf("request path = %q, want /range/5BAA6 (prefix only)", gotPath)
	}
}

func TestCheck_Safe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "0018A45C4D1DEF81644B54AB7F969B88D65:1")
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	state, err := client.Check(context.Background(), pwnedDigest)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if state != vault.BreachSafe {
		t.Errorf("Check() = %v, want safe", state)
	}
}

func TestCheck_SuffixMatchIsCaseInsensitive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, strings.ToLower(pwnedDigest[5:])+":42")
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	state, err := client.Check(context.Background(), pwnedDigest)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if state != vault.BreachCompromised {
		t.Errorf("Check() = %v, want compromised for lowercase response suffix", state)
	}
}

func TestCheck_RejectsBadDigestLength(t *testing.T) {
	client := NewClient()
	if _, err := client.Check(context.Background(), "5BAA6"); err == nil {
		t.Error("Check() accepted a short digest")
	}
}

func TestCheck_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	state, err := client.Check(context.Background(), pwnedDigest)
	if err == nil {
		t.Fatal("Check() succeeded on a 500 response")
	}
	if state != vault.BreachUnknown {
		t.Errorf("Check() state = %v on error, want unknown", state)
	}
}

func TestCheck_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithTimeout(10*time.Millisecond))
	if _, err := client.Check(context.Background(), pwnedDigest); err == nil {
		t.Error("Check() did not time out")
	}
}

func TestCheck_MalformedLinesIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "garbage line with no separator")
		fmt.Fprintln(w, pwnedDigest[5:]+":not-a-number")
		fmt.Fprintln(w, "0018A45C4D1DEF81644B54AB7F969B88D65:1")
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	state, err := client.Check(context.Background(), pwnedDigest)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if state != vault.BreachSafe {
		t.Errorf("Check() = %v, want safe when the matching line is malformed", state)
	}
}
