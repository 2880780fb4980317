package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInZone(t *testing.T) {
	tests := []struct {
		name string
		zone string
		want bool
	}{
		{"www.foo.", "foo.", true},
		{"foo.", "foo.", true},
		{"mail.foo.", "foo.", true},
		{"foo.com.", "foo.", false},
		{"notfoo.", "foo.", false},
		{"www.foo", "foo.", true},
	}

	for _, tt := range tests {
		assert.Equalf(t, tt.want, InZone(tt.name, tt.zone), "InZone(%q, %q)", tt.name, tt.zone)
	}
}

func TestParentZone(t *testing.T) {
	assert.Equal(t, "foo.", ParentZone("www.foo."))
	assert.Equal(t, ".", ParentZone("foo."))
	assert.Equal(t, ".", ParentZone("."))
}

func TestBailiwick(t *testing.T) {
	assert.Equal(t, "foo.", Bailiwick("www.foo."))
	assert.Equal(t, "foo.", Bailiwick("deep.sub.domain.foo."))
	assert.Equal(t, "foo.", Bailiwick("foo."))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("WWW.Foo.", "www.foo."))
	assert.True(t, Equal("www.foo", "www.foo."))
	assert.False(t, Equal("www.foo.", "mail.foo."))
}
