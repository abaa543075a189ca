package storage

import "errors"

// ErrNotFound indicates that a requested memory row does not exist.
// Backends return it from Get and Delete; core maps it onto its own
// sentinel at the orchestrator boundary.
var ErrNotFound = errors.New("storage: memory not found")

// ErrDimensionMismatch indicates a vector whose length differs from the
// store's configured embedding dimension. Mixed dimensions would silently
// cosine-score 0 against every query, so writes reject them instead.
var ErrDimensionMismatch = errors.New("storage: embedding dimension mismatch")
