package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMathProblem(t *testing.T) {
	svc := NewCaptchaService()
	for i := 0; i < 100; i++ {
		question, answer := svc.GenerateMathProblem()

		var a, b int
		var op string
		_, err := fmt.Sscanf(question, "%d %s %d", &a, &op, &b)
		require.NoError(t, err, question)

		switch op {
		case "+":
			assert.Equal(t, a+b, answer)
		case "-":
			assert.Equal(t, a-b, answer)
			assert.GreaterOrEqual(t, answer, 0)
		default:
			t.Fatalf("unexpected operator in %q", question)
		}
	}
}
