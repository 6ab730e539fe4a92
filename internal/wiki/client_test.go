package wiki_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hbcai/internal/fetch"
	"hbcai/internal/wiki"
)

func newClient(t *testing.T, h http.Handler) *wiki.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cl, err := fetch.New(fetch.Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("fetch client: %v", err)
	}
	return wiki.New(cl, srv.URL+"/w")
}

func TestDocument_FoundAndNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/w/rest.php/v1/page/Talk:X_y/html", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("redirect") != "no" {
			t.Errorf("redirect param = %q", r.URL.Query().Get("redirect"))
		}
		_, _ = w.Write([]byte(`<html><body><section data-mw-section-id="1"><h2 id="A">A</h2></section></body></html>`))
	})
	mux.HandleFunc("/w/rest.php/v1/page/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	c := newClient(t, mux)

	doc, err := c.Document(context.Background(), "Talk:X y")
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if doc.Title != "Talk:X y" || len(doc.Sections) != 1 || doc.Sections[0].Title != "A" {
		t.Fatalf("unexpected doc: %+v", doc)
	}
	_, err = c.Document(context.Background(), "Talk:Missing")
	if !errors.Is(err, wiki.ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
}

func TestWikitextAndSave(t *testing.T) {
	var saved string
	mux := http.NewServeMux()
	mux.HandleFunc("/w/rest.php/v1/page/Talk:X", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title":"Talk:X","source":"hello"}`))
	})
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch r.Form.Get("action") {
		case "query":
			_, _ = w.Write([]byte(`{"query":{"tokens":{"csrftoken":"tok+\\"}}}`))
		case "edit":
			if r.Method != http.MethodPost || r.PostForm.Get("token") != `tok+\` {
				_, _ = w.Write([]byte(`{"error":{"code":"badtoken","info":"Invalid CSRF token."}}`))
				return
			}
			saved = r.PostForm.Get("text")
			_, _ = w.Write([]byte(`{"edit":{"result":"Success"}}`))
		}
	})
	c := newClient(t, mux)

	src, err := c.Wikitext(context.Background(), "Talk:X")
	if err != nil || src != "hello" {
		t.Fatalf("wikitext = %q, %v", src, err)
	}
	if err := c.Save(context.Background(), "Talk:X", "new text", "Bot: Updating index"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved != "new text" {
		t.Fatalf("saved = %q", saved)
	}
}

func TestSave_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("action") == "query" {
			_, _ = w.Write([]byte(`{"query":{"tokens":{"csrftoken":"t"}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"error":{"code":"protectedpage","info":"This page has been protected."}}`))
	})
	c := newClient(t, mux)
	err := c.Save(context.Background(), "Talk:X", "t", "s")
	if err == nil || !strings.Contains(err.Error(), "protectedpage") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestEmbeddedIn_Continuation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("eicontinue") == "" {
			_, _ = w.Write([]byte(`{"continue":{"eicontinue":"1|2","continue":"-||"},"query":{"embeddedin":[{"title":"Talk:A"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"query":{"embeddedin":[{"title":"Talk:B"}]}}`))
	})
	c := newClient(t, mux)
	titles, err := c.EmbeddedIn(context.Background(), "User:HBC Archive Indexerbot/OptIn")
	if err != nil {
		t.Fatalf("embeddedin: %v", err)
	}
	if strings.Join(titles, ",") != "Talk:A,Talk:B" {
		t.Fatalf("titles = %v", titles)
	}
}

func TestHistoryFeedURL(t *testing.T) {
	cl, _ := fetch.New(fetch.Options{})
	c := wiki.New(cl, "https://en.wikipedia.org/w/")
	got := c.HistoryFeedURL("Talk:X/Archive index")
	if !strings.HasPrefix(got, "https://en.wikipedia.org/w/index.php?") || !strings.Contains(got, "feed=atom") {
		t.Fatalf("url = %q", got)
	}
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch r.Form.Get("action") {
		case "query":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1", Path: "/"})
			_, _ = w.Write([]byte(`{"query":{"tokens":{"logintoken":"lt"}}}`))
		case "login":
			if c, err := r.Cookie("session"); err != nil || c.Value != "s1" {
				_, _ = w.Write([]byte(`{"login":{"result":"Failed","reason":"no session"}}`))
				return
			}
			if r.PostForm.Get("lgtoken") != "lt" || r.PostForm.Get("lgpassword") != "secret" {
				_, _ = w.Write([]byte(`{"login":{"result":"Failed","reason":"bad password"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"login":{"result":"Success"}}`))
		}
	})
	c := newClient(t, mux)

	if err := c.Login(context.Background(), "Bot@idx", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	err := c.Login(context.Background(), "Bot@idx", "wrong")
	if err == nil || !strings.Contains(err.Error(), "bad password") {
		t.Fatalf("expected login failure, got %v", err)
	}
}
