package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSemver(t *testing.T) {
	testMatrix := []struct {
		build string
		want  string
	}{
		{"1.2.3", "1.2.3"},
		{"v0.9.0-beta.1", "0.9.0-beta.1"},
		{"development", "0.0.0"},
		{"", "0.0.0"},
	}

	orig := version
	defer func() { version = orig }()

	for _, c := range testMatrix {
		version = c.build
		assert.Equal(t, c.want, Semver().String(), "build version %q", c.build)
	}
}
