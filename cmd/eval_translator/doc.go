// Package main provides a tool that computes the validation loss of an exported
// translation model. The validation corpora are tokenized and collated exactly
// as for training, the ONNX graph is run on every batch with teacher forcing,
// and the mean cross entropy is logged as val_loss together with its perplexity.
package main
