package clierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeOf(t *testing.T) {
	t.Parallel()

	base := errors.New("disk gone")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain error", base, ExitAborted},
		{"exit error", New(ExitFindings, "3 findings"), ExitFindings},
		{"wrapped exit error", fmt.Errorf("run: %w", New(ExitFindings, "3 findings")), ExitFindings},
		{"zero code normalized", New(0, "oops"), ExitAborted},
		{"negative code normalized", Newf(-4, "oops %d", 1), ExitAborted},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCodeOf(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("permission denied")
	err := Wrap(ExitAborted, "reading api/a.d.ts", cause)
	assert.Equal(t, "reading api/a.d.ts: permission denied", err.Error())
	assert.ErrorIs(t, err, cause)

	noCause := Wrap(ExitFindings, "findings", nil)
	assert.Equal(t, "findings", noCause.Error())
	assert.Equal(t, ExitFindings, ExitCodeOf(noCause))
}

func TestSilent(t *testing.T) {
	t.Parallel()

	assert.True(t, Silent(New(ExitFindings, "2 findings")))
	assert.True(t, Silent(fmt.Errorf("run: %w", New(ExitFindings, "2 findings"))))
	assert.False(t, Silent(New(ExitAborted, "aborted")))
	assert.False(t, Silent(Wrap(ExitFindings, "x", errors.New("cause"))))
	assert.False(t, Silent(errors.New("plain")))
	assert.False(t, Silent(nil))
}
