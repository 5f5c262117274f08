package models

type contextKey string

// ErrGroupKey carries the errgroup used for teardown goroutines on the
// context passed to Load.
const ErrGroupKey contextKey = "errGroup"
