package validator

// file: internal/validator/chain.go

import (
	"context"
	"sync"

	"github.com/kimosabey/dataquarantine/internal/schema"
)

// Chain is an ordered, mutable sequence of validators. Run implements the
// short-circuit contract of spec.md §4.2: the first invalid verdict wins
// and validators after it are not invoked for that message.
type Chain struct {
	mu         sync.RWMutex
	validators []Validator
}

// NewChain constructs a Chain running validators in the given order.
func NewChain(validators ...Validator) *Chain {
	return &Chain{validators: append([]Validator(nil), validators...)}
}

// Append adds v to the end of the chain.
func (c *Chain) Append(v Validator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validators = append(c.validators, v)
}

// Remove drops the first validator named name from the chain, reporting
// whether one was found.
func (c *Chain) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range c.validators {
		if v.Name() == name {
			c.validators = append(c.validators[:i], c.validators[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns the current validator names in order, for diagnostics.
func (c *Chain) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.validators))
	for i, v := range c.validators {
		names[i] = v.Name()
	}
	return names
}

// Run executes the chain against doc/instance, returning the first
// invalid verdict encountered plus the name of the validator that raised
// it (needed by the engine's remediation step, which re-runs only that
// validator), or a zero verdict and empty name if every validator passes.
// A validator-internal fault aborts the run and is returned as an error.
func (c *Chain) Run(ctx context.Context, doc schema.Document, instance map[string]interface{}) (verdict *ValidationError, validatorName string, err error) {
	c.mu.RLock()
	validators := append([]Validator(nil), c.validators...)
	c.mu.RUnlock()

	for _, v := range validators {
		verdict, err := v.Validate(ctx, doc, instance)
		if err != nil {
			return nil, "", err
		}
		if verdict != nil {
			return verdict, v.Name(), nil
		}
	}
	return nil, "", nil
}

// RunOne re-runs the single validator named name against doc/instance,
// used by the engine to re-validate a remediated payload without
// re-running validators earlier in the chain a second time.
func (c *Chain) RunOne(ctx context.Context, name string, doc schema.Document, instance map[string]interface{}) (*ValidationError, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, v := range c.validators {
		if v.Name() == name {
			return v.Validate(ctx, doc, instance)
		}
	}
	return nil, nil
}
