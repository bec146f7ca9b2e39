// Package main provides a tool that runs the training data loader of a
// translation run without a model. Every epoch draws the configured random
// sample of the corpora, tokenizes and collates it on the worker pool, and logs
// batch shape statistics, padding, throughput and the epoch fingerprint. With
// -cuda each batch is also copied to GPU memory.
package main
