package http

import (
	"net/http"
	"net/url"
)

// Flash is a one-shot message surfaced on the next rendered page,
// carried in a short-lived cookie (set on redirect, cleared on read).
type Flash struct {
	Kind    string // success, info, warning, danger
	Message string
}

const flashCookie = "flash"

func setFlash(w http.ResponseWriter, kind, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(kind + "|" + message),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the pending flash message, if any.
func popFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] == '|' {
			return &Flash{Kind: raw[:i], Message: raw[i+1:]}
		}
	}
	return &Flash{Kind: "info", Message: raw}
}
