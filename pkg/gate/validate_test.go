package gate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tellerflow/tellerflow/pkg/gate"
)

func TestValidateMessage(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, gate.ValidateMessage("transfer 50 to alice"))
	})

	t.Run("whitespace controls allowed", func(t *testing.T) {
		assert.NoError(t, gate.ValidateMessage("line one\nline two\ttabbed"))
	})

	t.Run("empty", func(t *testing.T) {
		assert.ErrorIs(t, gate.ValidateMessage(""), gate.ErrMessageEmpty)
	})

	t.Run("too long", func(t *testing.T) {
		err := gate.ValidateMessage(strings.Repeat("a", gate.MaxMessageLength+1))
		assert.ErrorIs(t, err, gate.ErrMessageTooLong)
	})

	t.Run("exactly max length", func(t *testing.T) {
		assert.NoError(t, gate.ValidateMessage(strings.Repeat("a", gate.MaxMessageLength)))
	})

	t.Run("control characters", func(t *testing.T) {
		assert.ErrorIs(t, gate.ValidateMessage("hello\x00world"), gate.ErrControlCharacters)
		assert.ErrorIs(t, gate.ValidateMessage("bell\x07"), gate.ErrControlCharacters)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		assert.ErrorIs(t, gate.ValidateMessage(string([]byte{0xff, 0xfe})), gate.ErrInvalidEncoding)
	})
}
