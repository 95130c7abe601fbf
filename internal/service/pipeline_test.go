package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type probe struct{ bad bool }

func (p probe) Validate() []Violation {
	if p.bad {
		return []Violation{{Field: "bad", Message: "is set"}}
	}
	return nil
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware[probe, int] {
		return func(next HandlerFunc[probe, int]) HandlerFunc[probe, int] {
			return func(ctx context.Context, req probe) Result[int] {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}
	h := Chain(func(context.Context, probe) Result[int] {
		order = append(order, "handler")
		return OK(1)
	}, mark("outer"), mark("inner"))

	res := h(context.Background(), probe{})
	assert.True(t, res.IsOK())
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestValidation_ShortCircuits(t *testing.T) {
	called := false
	h := Chain(func(context.Context, probe) Result[int] {
		called = true
		return OK(1)
	},
		Tracing[probe, int]("probe"),
		Logging[probe, int](discardLogger(), "probe"),
		Validation[probe, int](),
	)

	res := h(context.Background(), probe{bad: true})
	assert.Equal(t, KindValidation, res.Kind)
	assert.Equal(t, "bad", res.Violations[0].Field)
	assert.False(t, called)
}

func TestParseSideEffectPolicy(t *testing.T) {
	p, err := ParseSideEffectPolicy("")
	assert.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	p, err = ParseSideEffectPolicy(" Best_Effort ")
	assert.NoError(t, err)
	assert.Equal(t, PolicyBestEffort, p)

	_, err = ParseSideEffectPolicy("yolo")
	assert.Error(t, err)
}

func TestResult_Reason(t *testing.T) {
	assert.Empty(t, OK(1).Reason())
	assert.Contains(t, NotFound[int]("abc").Reason(), "abc")
	assert.Contains(t, Invalid[int](Violation{Field: "x", Message: "y"}).Reason(), "x y")
	assert.Equal(t, "infrastructure", KindInfra.String())
}
