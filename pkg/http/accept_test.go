package http

import (
	"net/http"
	"testing"
)

func TestNegotiateContentType(t *testing.T) {
	for _, c := range []struct {
		name   string
		accept []string
		offers []string
		want   string
	}{
		{"no accept header", nil, []string{"application/json", "text/plain"}, "application/json"},
		{"no match", []string{"text/html;q=0.9", "image/png"}, []string{"application/json"}, ""},
		{"equal quality follows preference", []string{"text/plain,application/json"}, []string{"application/json", "text/plain"}, "application/json"},
		{"quality beats preference", []string{"application/json;q=0.5,text/plain;q=1.0"}, []string{"application/json", "text/plain"}, "text/plain"},
	} {
		t.Run(c.name, func(t *testing.T) {
			h := http.Header{}
			for _, a := range c.accept {
				h.Add("Accept", a)
			}
			if got := negotiateContentType(&http.Request{Header: h}, c.offers); got != c.want {
				t.Errorf("expected %q, got %q", c.want, got)
			}
		})
	}
}
