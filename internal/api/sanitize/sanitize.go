package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// Plain strips every tag from free text such as visit notes and class
// descriptions. Entities produced by the policy are decoded again so the
// stored value reads the way it was typed.
func Plain(input string) string {
	value := strings.TrimSpace(input)
	if value == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(getStrictPolicy().Sanitize(value)))
}

// PlainPtr keeps nil as nil and turns blank input into nil.
func PlainPtr(input *string) *string {
	if input == nil {
		return nil
	}
	value := Plain(*input)
	if value == "" {
		return nil
	}
	return &value
}

func getStrictPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}
