// Package htmlsanitize cleans user-authored post content before it is stored.
package htmlsanitize

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// Policy returns the shared sanitization policy: bluemonday's UGC policy plus
// class and a few layout styles on table elements.
func Policy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		tableElems := []string{"table", "thead", "tbody", "tfoot", "tr", "td", "th"}
		p.AllowAttrs("class").OnElements(tableElems...)
		p.AllowStyles("width", "text-align", "vertical-align").OnElements(tableElems...)
		policy = p
	})
	return policy
}

// Sanitize strips scripts, event handlers, unsafe URLs and unknown elements.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return Policy().Sanitize(s)
}
