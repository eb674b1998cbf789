package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNoValue = errors.New("config: no value set")

	// ErrShutdown is returned by Get after Shutdown
	ErrShutdown = errors.New("config: shutdown")
)

// Config is an untyped source of configuration values. Sources return
// ErrNoValue when nothing is set, letting typed wrappers fall back to a
// default.
type Config interface {
	Get(ctx context.Context) (interface{}, error)

	Shutdown()
}

// Typed is a Config converted to T.
//
// Get never fails: conversion or source errors yield the last good value, or
// the default before one was seen. GetSafe surfaces the error alongside that
// value.
type Typed[T any] interface {
	Get(ctx context.Context) T
	GetSafe(ctx context.Context) (T, error)
	Shutdown()
}

type (
	Bool     = Typed[bool]
	Duration = Typed[time.Duration]
	Float64  = Typed[float64]
	Uint64   = Typed[uint64]
	String   = Typed[string]
)
