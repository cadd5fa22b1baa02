package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "abc123", sanitize("abc123"))
	assert.Equal(t, "a_b_c", sanitize("a-b.c"))
	assert.Equal(t, "00000000_0000_0000_0000_000000000000", sanitize(uuid.Nil.String()))
}

func TestArtifactFilename(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	assert.Equal(t, "libhandler_11111111_1111_1111_1111_111111111111.wasm", artifactFilename(id))
}
