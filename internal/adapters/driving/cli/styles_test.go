package cli

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

func TestStyles_PlainWhenNotTerminal(t *testing.T) {
	st := newStyles(new(bytes.Buffer))

	assert.False(t, st.enabled)
	assert.Equal(t, "connected", st.Phase(domain.PhaseConnected))
	assert.Equal(t, "unhealthy", st.Healthy(false))
	assert.Equal(t, "failed", st.Status(domain.StatusFailed))
}

func TestStyles_RenderWhenTerminal(t *testing.T) {
	orig := isTerminal
	isTerminal = func(io.Writer) bool { return true }
	defer func() { isTerminal = orig }()

	st := newStyles(new(bytes.Buffer))

	assert.True(t, st.enabled)
	assert.Contains(t, st.Bad("down"), "down")
	assert.Contains(t, st.Phase(domain.PhaseReconnecting), "reconnecting")
}

func TestIsTerminal_Buffer(t *testing.T) {
	assert.False(t, isTerminal(new(bytes.Buffer)))
}
