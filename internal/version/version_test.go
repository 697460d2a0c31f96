package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	require.Equal(t, "cardscan 0.1.0 (commit unknown, built unknown)", String())
}
