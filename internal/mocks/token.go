package mocks

import (
	"time"
)

// Token is a completed mqtt.Token carrying a fixed error.
type Token struct {
	err error
}

// NewToken returns a completed token that reports err.
func NewToken(err error) *Token {
	return &Token{err: err}
}

func (t *Token) Wait() bool                       { return true }
func (t *Token) WaitTimeout(_ time.Duration) bool { return true }
func (t *Token) Error() error                     { return t.err }

func (t *Token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
