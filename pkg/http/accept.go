package http

import (
	"net/http"
	"sort"

	"github.com/golang/gddo/httputil/header"
)

// negotiateContentType picks one of the offered content types, listed
// in order of preference, using the request's Accept header. Higher
// quality wins; among equal quality the earlier offer wins. With no
// Accept header the first offer is used; with no match, "".
func negotiateContentType(r *http.Request, offers []string) string {
	specs := header.ParseAccept(r.Header, "Accept")
	if len(specs) == 0 {
		return offers[0]
	}

	var matching []header.AcceptSpec
	for _, spec := range specs {
		if rank(offers, spec.Value) < len(offers) {
			matching = append(matching, spec)
		}
	}
	if len(matching) == 0 {
		return ""
	}
	sort.SliceStable(matching, func(i, j int) bool {
		if matching[i].Q != matching[j].Q {
			return matching[i].Q > matching[j].Q
		}
		return rank(offers, matching[i].Value) < rank(offers, matching[j].Value)
	})
	return matching[0].Value
}

// rank is the position of v in offers, or len(offers) if it's not
// there, so that unknown values sort last.
func rank(offers []string, v string) int {
	for i, o := range offers {
		if o == v {
			return i
		}
	}
	return len(offers)
}
