package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIPKey(t *testing.T) {
	assert.Equal(t, "rl:ip:203.0.113.7:search", NewIPKey("203.0.113.7", ClassSearch))
	assert.Equal(t, "rl:ip:2001_db8__1:read", NewIPKey("2001:db8::1", ClassRead))
}

func TestAnonymizeIP(t *testing.T) {
	assert.Equal(t, "203.0.113.0", AnonymizeIP("203.0.113.7"))
	assert.Equal(t, "2001:db8:1::", AnonymizeIP("2001:db8:1:2::5"))
	assert.Equal(t, "", AnonymizeIP("garbage"))
}

func TestEndpointClass_IsValid(t *testing.T) {
	assert.True(t, ClassSearch.IsValid())
	assert.True(t, ClassRead.IsValid())
	assert.False(t, EndpointClass("admin").IsValid())
}
