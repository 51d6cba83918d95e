package builtin

import (
	"testing"

	"github.com/newthinker/tradesim/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistry(t *testing.T) {
	r := Registry(zap.NewNop())
	assert.Equal(t, []string{"ma_crossover", "noop", "rsi"}, r.Names())

	for _, name := range r.Names() {
		s, err := r.New(name, strategy.Config{})
		require.NoError(t, err, name)
		assert.Equal(t, name, s.Name())
	}
}
