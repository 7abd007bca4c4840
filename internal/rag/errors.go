package rag

import "errors"

var (
	// ErrInvalidInput is returned for malformed retrieval arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRetrieval is returned when the encoder or the vector index fails.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration is returned when the LLM fails or returns an empty answer.
	ErrGeneration = errors.New("generation failed")
)
